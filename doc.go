// Package guard binds a Casbin-style policy enforcer to go-kit endpoints.
//
// A Guard is built once from three collaborators: a user provider that
// resolves the caller's identity, an enforcer provider that yields the policy
// engine, and an error factory that turns a denial into an error. Its methods
// return endpoint.Middlewares that are applied when routes are wired, not per
// request.
//
//	g := guard.New(userProvider, enforcerProvider, guard.Forbidden)
//
//	list := g.RequirePermission("articles", "read")(makeListEndpoint(svc))
//	edit := g.RequirePermission(
//		guard.NewSubject(loadArticle, func(v interface{}) interface{} {
//			return v.(Article).Owner
//		}),
//		"write",
//	)(makeEditEndpoint(svc))
//
// Arguments to RequirePermission are either constants, passed through as-is,
// or Subjects, resolved per request and transformed by their selector. The
// enforcer always receives them in declaration order, after the user.
//
// Resolution failures of the user, the enforcer or any Subject are returned
// unchanged. Only a negative decision goes through the error factory.
package guard
