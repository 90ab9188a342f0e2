package querysql

import (
	"database/sql"
	"fmt"

	"github.com/roach88/warden/internal/expr"
	"github.com/roach88/warden/internal/ir"
)

// RuleCount compiles a parsed rule expression into a count statement.
//
// LanguageWhere wraps the fragment as
//
//	SELECT COUNT(*) FROM "<table>" WHERE (<fragment>)
//
// LanguageSQL uses the query unchanged. Bound values are passed as named
// parameters (:p0, :p1, ...), which go-sqlite3 matches by name.
func RuleCount(spec *ir.TypeSpec, lang ir.Language, model *expr.Model, bound map[string]any) (Compiled, error) {
	args := NamedArgs(model, bound)

	switch lang {
	case ir.LanguageWhere, "":
		if model.Query == "" {
			return Compiled{SQL: "SELECT COUNT(*) FROM " + quoteIdent(spec.Table), Args: args}, nil
		}
		return Compiled{
			SQL:  fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE (%s)", quoteIdent(spec.Table), model.Query),
			Args: args,
		}, nil
	case ir.LanguageSQL:
		if model.Query == "" {
			return Compiled{}, fmt.Errorf("empty %s expression", lang)
		}
		return Compiled{SQL: model.Query, Args: args}, nil
	default:
		return Compiled{}, fmt.Errorf("unsupported expression language %q", lang)
	}
}

// NamedArgs converts bound values to sql.Named arguments in parameter order.
func NamedArgs(model *expr.Model, bound map[string]any) []any {
	args := make([]any, 0, len(model.Params))
	for _, p := range model.Params {
		args = append(args, sql.Named(p.Name, bound[p.Name]))
	}
	return args
}
