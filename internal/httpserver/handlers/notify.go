package handlers

import (
	"context"
	"time"

	"github.com/marque-app/marque/internal/domain"
	"github.com/marque-app/marque/internal/httpserver/deps"
	"github.com/marque-app/marque/internal/logger"
)

// notifyShares mails the users a share mutation newly granted access
// to. Runs in its own goroutine; the request never waits on SMTP.
func notifyShares(d deps.Deps, ownerID int64, added []int64, kind, title string) {
	if d.Mailer == nil || len(added) == 0 {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		owner, err := d.Store.UserByID(ctx, ownerID)
		if err != nil {
			d.Logger.Warn("share notice skipped, owner lookup failed",
				logger.Int64("owner_id", ownerID),
				logger.Error(err))
			return
		}
		recipients := make([]domain.User, 0, len(added))
		for _, id := range added {
			u, err := d.Store.UserByID(ctx, id)
			if err != nil {
				d.Logger.Warn("share notice skipped for one recipient",
					logger.Int64("user_id", id),
					logger.Error(err))
				continue
			}
			recipients = append(recipients, *u)
		}
		d.Mailer.ShareNotice(owner, recipients, kind, title)
	}()
}
