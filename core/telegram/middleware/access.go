package middleware

import tele "gopkg.in/telebot.v4"

// AccessOptions defines how admin-only checks should behave.
type AccessOptions struct {
	AdminIDs []int64
	OnReject tele.HandlerFunc
}

func (o AccessOptions) allowed(id int64) bool {
	for _, admin := range o.AdminIDs {
		if admin == id {
			return true
		}
	}
	return false
}

// AdminOnlyMiddleware ensures that only allow-listed users can invoke downstream handlers.
func AdminOnlyMiddleware(opts AccessOptions) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			sender := c.Sender()
			if len(opts.AdminIDs) > 0 && (sender == nil || !opts.allowed(sender.ID)) {
				if opts.OnReject != nil {
					return opts.OnReject(c)
				}
				return nil
			}
			return next(c)
		}
	}
}
