// Package paths resolves logical resource locations to filesystem paths.
//
// A [Resolver] is rooted at one base directory and knows a fixed set of
// sub-directories ([Kind]): logs, scripts, public, private, databases,
// plugins, templates, flowstreams, modules and tmp. Their locations are
// computed once at construction.
//
// # Resolving
//
//	r := paths.New("/srv/app")
//	r.Logs("audit.log")                     // /srv/app/logs/audit.log
//	r.Resolve(paths.Public, "css", "a.css") // /srv/app/public/css/a.css
//
// # Escape rules
//
// [Resolver.Route] resolves a logical path in the context of a directory
// name and honours two prefixes:
//
//	r.Route("~etc/hosts", "public")             // etc/hosts (verbatim)
//	r.Route("_shop/public/style.css", "public") // /srv/app/plugins/shop/public/style.css
//	r.Route("style.css", "public")              // /srv/app/public/style.css
//
// Unknown directory names resolve against the base directory.
//
// # Filesystem helpers
//
// Directories are created lazily with [Resolver.EnsureDir]. Deletes through
// [Resolver.Unlink] and [Resolver.RemoveAll] treat a missing path as
// success. Failures are returned as [*PathError] wrapping [ErrCreateDir] or
// [ErrRemove]. [Resolver.Exists] is advisory and never returns an error.
package paths
