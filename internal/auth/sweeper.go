package auth

import (
	"context"
	"log"
	"time"
)

// StartSweeper deletes expired access tokens on an interval until ctx ends.
func (s *Service) StartSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Hour
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := s.sweepExpired(ctx); err != nil {
					log.Printf("sweep expired tokens: %v", err)
				}
			}
		}
	}()
}

func (s *Service) sweepExpired(ctx context.Context) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM access_tokens WHERE expires_at < ?`, time.Now().UTC())
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		log.Printf("removed %d expired access tokens", n)
	}
	return nil
}
