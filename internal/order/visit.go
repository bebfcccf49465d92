package order

import (
	"fmt"
	"strings"

	"github.com/rxtech-lab/argo-engine/internal/types"
	"github.com/rxtech-lab/argo-engine/pkg/errors"
)

// Walk calls fn for every leaf order. Brackets are visited entry first, then
// profit-taker, then stop-loss. Walk stops at the first error.
func Walk(o Order, fn func(*Simple) error) error {
	switch v := o.(type) {
	case *Simple:
		return fn(v)
	case *Bracket:
		for _, leg := range v.Legs() {
			if err := fn(leg); err != nil {
				return err
			}
		}

		return nil
	default:
		return errors.Newf(errors.ErrCodeInvalidParameter, "unknown order type %T", o)
	}
}

// Flatten returns the leaf orders in transmission order.
func Flatten(o Order) []*Simple {
	legs := make([]*Simple, 0, 3)

	_ = Walk(o, func(s *Simple) error {
		legs = append(legs, s)

		return nil
	})

	return legs
}

// Print renders an order for humans.
func Print(o Order) string {
	var sb strings.Builder

	switch v := o.(type) {
	case *Simple:
		writeSimple(&sb, v, "")
	case *Bracket:
		fmt.Fprintf(&sb, "Bracket %s [%s, %s]\n", v.ID(), v.Status(), v.Phase())
		_ = Walk(v, func(s *Simple) error {
			writeSimple(&sb, s, "  ")

			return nil
		})
	}

	return sb.String()
}

func writeSimple(sb *strings.Builder, s *Simple, indent string) {
	fmt.Fprintf(sb, "%s%s %s %s %v %s @ %v [%s]",
		indent, s.Role(), s.ID(), s.Direction(), s.Quantity(), s.Instrument(), s.TargetPrice(), s.ExecType())
	fmt.Fprintf(sb, " status=%s filled=%v", s.Status(), s.FilledQuantity())

	if s.FilledQuantity() > 0 {
		fmt.Fprintf(sb, " avg=%v commission=%v", s.AvgFillPrice(), s.TotalCommission())
	}

	sb.WriteString("\n")
}

// Summarize adds a filled order to the summary. Summarizing an order whose
// entry has not filled is an error.
func Summarize(o Order, summary *types.TradeSummary) error {
	switch v := o.(type) {
	case *Simple:
		if v.Status() != types.OrderStatusFilled {
			return errors.Newf(errors.ErrCodeOrderNotFilled, "order %s is %s", v.ID(), v.Status())
		}

		summary.Entries++
		summary.Commissions += v.TotalCommission()
	case *Bracket:
		if v.Entry().Status() != types.OrderStatusFilled {
			return errors.Newf(errors.ErrCodeOrderNotFilled, "bracket %s entry is %s", v.ID(), v.Entry().Status())
		}

		summary.Entries++
		summary.Commissions += v.TotalCommission()

		if exit := v.Outcome(); exit != nil {
			switch exit.Role() {
			case RoleStopLoss:
				summary.StopTriggers++
			case RoleProfitTaker:
				summary.ProfitTriggers++
			}
		}
	default:
		return errors.Newf(errors.ErrCodeInvalidParameter, "unknown order type %T", o)
	}

	summary.UpdateSuccessRatio()

	return nil
}
