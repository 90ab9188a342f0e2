// Package expr implements expression templates bound to live object state.
//
// A template is a query fragment containing property references:
//
//	code = ${code} AND id != ${id}
//
// Parse replaces every ${path} token with a synthetic named parameter
// (:p0, :p1, ... in order of first occurrence) and records which path each
// parameter stands for. Bind later resolves those paths against an instance.
// Parsing happens once per declaration; binding happens once per evaluation.
//
// Path resolution never uses reflection. An instance participates by
// implementing Resolver, or by being a map[string]any:
//
//	func (p *Product) Resolve(name string) (any, bool) {
//	    switch name {
//	    case "code":
//	        return p.Code, true
//	    case "category":
//	        return p.Category, true // *Category also implements Resolver
//	    }
//	    return nil, false
//	}
//
// Dotted paths ("category.name") walk one Resolver per segment.
package expr
