package sqlbuilder

import (
	"strings"

	"datagate/internal/domain"
)

// renderConditions translates parsed conditions into a WHERE fragment and
// its bound arguments. Column names have already passed the whitelist;
// every literal value flows through a placeholder.
func renderConditions(conds []domain.Condition) (string, []interface{}, error) {
	if len(conds) == 0 {
		return "", nil, nil
	}

	parts := make([]string, 0, len(conds))
	args := make([]interface{}, 0, len(conds))
	for _, c := range conds {
		fragment, condArgs, err := renderCondition(c)
		if err != nil {
			return "", nil, err
		}
		parts = append(parts, fragment)
		args = append(args, condArgs...)
	}
	return strings.Join(parts, " AND "), args, nil
}

func renderCondition(c domain.Condition) (string, []interface{}, error) {
	switch c.Kind {
	case domain.CondEq:
		return c.Column + " = ?", []interface{}{c.Value}, nil
	case domain.CondNeq:
		return c.Column + " <> ?", []interface{}{c.Value}, nil
	case domain.CondGt:
		return c.Column + " > ?", []interface{}{c.Value}, nil
	case domain.CondGte:
		return c.Column + " >= ?", []interface{}{c.Value}, nil
	case domain.CondLt:
		return c.Column + " < ?", []interface{}{c.Value}, nil
	case domain.CondLte:
		return c.Column + " <= ?", []interface{}{c.Value}, nil
	case domain.CondLike:
		return c.Column + " LIKE ?", []interface{}{c.Value}, nil
	case domain.CondIsNull:
		return c.Column + " IS NULL", nil, nil
	case domain.CondIsNotNull:
		return c.Column + " IS NOT NULL", nil, nil
	case domain.CondIn:
		if len(c.Values) == 0 {
			return "", nil, domain.ErrEmptyMembership(c.Column)
		}
		placeholders := strings.Repeat("?, ", len(c.Values))
		return c.Column + " IN (" + placeholders[:len(placeholders)-2] + ")", c.Values, nil
	default:
		return "", nil, domain.ErrUnsupportedOperator(string(c.Kind))
	}
}
