package approve

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/Apurv-Arya/Advanced-Approver-Bot/internal/userbot"
)

// Run is the accounting of one batch: Approved+Failed always equals the
// number of requests seen.
type Run struct {
	ChatID   int64
	Approved int
	Failed   int
}

// Pipeline approves pending join requests one by one. Approvals are paced
// by a fixed inter-call delay, and a rate-limit signal from the platform
// gets exactly one retry after the mandated wait.
type Pipeline struct {
	pageLimit int
	delay     time.Duration
	sleep     func(ctx context.Context, d time.Duration) error
}

// NewPipeline builds a pipeline fetching up to pageLimit requests per run
// and spacing approval calls delay apart. A zero delay disables pacing.
func NewPipeline(pageLimit int, delay time.Duration) *Pipeline {
	return &Pipeline{
		pageLimit: pageLimit,
		delay:     delay,
		sleep:     sleepCtx,
	}
}

// newLimiter paces one run. Each run gets its own bucket so one
// operator's batch never queues behind another's.
func (p *Pipeline) newLimiter() *rate.Limiter {
	limit := rate.Inf
	if p.delay > 0 {
		limit = rate.Every(p.delay)
	}
	return rate.NewLimiter(limit, 1)
}

// ApproveAll fetches the pending join requests of chatID and approves
// them sequentially. A single request failing never aborts the batch;
// resolution or listing failures do, before any request is touched.
func (p *Pipeline) ApproveAll(ctx context.Context, client userbot.Client, chatID int64) (Run, error) {
	run := Run{ChatID: chatID}

	chat, err := client.ResolveChat(ctx, chatID)
	if err != nil {
		return run, fmt.Errorf("resolve chat %d: %w", chatID, err)
	}

	requests, _, err := client.ListJoinRequests(ctx, chat, p.pageLimit, nil)
	if err != nil {
		return run, fmt.Errorf("list join requests for chat %d: %w", chatID, err)
	}

	limiter := p.newLimiter()
	for _, req := range requests {
		if err := limiter.Wait(ctx); err != nil {
			return run, err
		}

		err := client.ApproveJoinRequest(ctx, chat, req.UserID)
		if rl, ok := userbot.AsRateLimit(err); ok {
			log.Info().Dur("wait", rl.Wait).Int64("chat", chatID).Int64("user", req.UserID).Msg("rate limited, waiting before retry")
			if err := p.sleep(ctx, rl.Wait); err != nil {
				return run, err
			}
			err = client.ApproveJoinRequest(ctx, chat, req.UserID)
		}
		if err != nil {
			run.Failed++
			log.Warn().Err(err).Int64("chat", chatID).Int64("user", req.UserID).Msg("failed to approve join request")
			continue
		}
		run.Approved++
	}

	log.Info().Int64("chat", chatID).Int("approved", run.Approved).Int("failed", run.Failed).Msg("approval run finished")
	return run, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
