package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"fleetclaim/internal/fault"
	"fleetclaim/internal/modules/acceptance"
	"fleetclaim/internal/modules/assignment"
	"fleetclaim/internal/modules/directory"
	"fleetclaim/internal/modules/eligibility"
	"fleetclaim/internal/modules/fallback"
	"fleetclaim/internal/remote"
	"fleetclaim/internal/remote/remotetest"
	"fleetclaim/internal/session"
	"fleetclaim/internal/types"
)

type Summary struct {
	Racers     int
	Winners    int
	Conflicts  int
	Other      int
	OtherKinds map[string]int
	Latencies  []time.Duration

	mu sync.Mutex
}

func (s *Summary) add(outcome string, latency time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Racers++
	s.Latencies = append(s.Latencies, latency)
	switch outcome {
	case "won":
		s.Winners++
	case string(fault.KindConflict):
		s.Conflicts++
	default:
		s.Other++
		if s.OtherKinds == nil {
			s.OtherKinds = map[string]int{}
		}
		s.OtherKinds[outcome]++
	}
}

// Percentile returns the p-th latency percentile (p in 1..100).
func (s *Summary) Percentile(p int) time.Duration {
	if len(s.Latencies) == 0 {
		return 0
	}
	sorted := append([]time.Duration(nil), s.Latencies...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	idx := (p*len(sorted) + 99) / 100
	if idx < 1 {
		idx = 1
	}
	return sorted[idx-1]
}

type FakeConfig struct {
	OrderID   string
	Operators int
	Balance   string
	Price     string
}

// runFake wires the real coordinator against an in-process authority and races every
// operator through AcceptOrder at once.
func runFake(ctx context.Context, cfg FakeConfig, log *logrus.Logger) (*Summary, error) {
	if cfg.Operators < 1 {
		return nil, fmt.Errorf("operators must be at least 1")
	}
	auth := remotetest.New()
	defer auth.Close()
	auth.AddOrder(remotetest.Order{ID: cfg.OrderID, EstimatedPrice: cfg.Price})

	client := remote.NewClient(remote.Config{BaseURL: auth.URL(), Timeout: 10 * time.Second, RetryAttempts: 3, RetryBaseDelay: 50 * time.Millisecond}, log)
	dir := directory.NewService(client, log)
	coord := acceptance.NewCoordinator(acceptance.Deps{
		Claims:      client,
		Orders:      client,
		Eligibility: eligibility.NewService(client, client, dir, log),
		Assignments: assignment.NewService(client, log),
		Selector:    fallback.NewSelector(dir, fallback.Config{}, log),
		Log:         log,
	})

	ctxs := make([]context.Context, cfg.Operators)
	for i := range ctxs {
		id := fmt.Sprintf("op%03d", i)
		token := "tok-" + id
		auth.AddOperator(token, id, cfg.Balance)
		ctxs[i] = session.With(ctx, session.Session{OperatorID: types.ID(id), Token: token})
	}

	sum := &Summary{}
	start := make(chan struct{})
	var g errgroup.Group
	for i := range ctxs {
		opCtx := ctxs[i]
		g.Go(func() error {
			<-start
			t0 := time.Now()
			_, err := coord.AcceptOrder(opCtx, acceptance.AcceptCommand{OrderID: types.ID(cfg.OrderID)})
			sum.add(outcomeOf(err), time.Since(t0))
			log.WithError(err).Debug("claim attempt finished")
			return nil
		})
	}
	close(start)
	_ = g.Wait()

	if n := auth.ActiveAssignments(cfg.OrderID); n != sum.Winners {
		return sum, fmt.Errorf("authority holds %d active assignments but %d racers won", n, sum.Winners)
	}
	return sum, nil
}

func outcomeOf(err error) string {
	if err == nil {
		return "won"
	}
	if k := fault.KindOf(err); k != fault.KindUnknown {
		return string(k)
	}
	return "error"
}

type LiveConfig struct {
	BaseURL string
	OrderID string
	Tokens  []string
}

// runLive posts the same accept to a running operator API once per token.
func runLive(ctx context.Context, cfg LiveConfig, log *logrus.Logger) (*Summary, error) {
	httpc := &http.Client{Timeout: 10 * time.Second}
	url := cfg.BaseURL + "/api/orders/" + cfg.OrderID + "/accept"

	sum := &Summary{}
	start := make(chan struct{})
	var g errgroup.Group
	for _, token := range cfg.Tokens {
		token := token
		g.Go(func() error {
			<-start
			req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(`{}`))
			if err != nil {
				return err
			}
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("Authorization", "Bearer "+token)
			t0 := time.Now()
			resp, err := httpc.Do(req)
			if err != nil {
				sum.add(string(fault.KindNetwork), time.Since(t0))
				return nil
			}
			body, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			sum.add(liveOutcome(resp.StatusCode), time.Since(t0))
			log.WithFields(logrus.Fields{"status": resp.StatusCode, "body": string(body)}).Debug("claim attempt finished")
			return nil
		})
	}
	close(start)
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return sum, nil
}

func liveOutcome(status int) string {
	switch {
	case status == http.StatusCreated || status == http.StatusOK:
		return "won"
	case status == http.StatusConflict:
		return string(fault.KindConflict)
	case status == http.StatusPaymentRequired:
		return string(fault.KindInsufficientBalance)
	case status == http.StatusUnauthorized:
		return string(fault.KindAuthExpired)
	}
	return fmt.Sprintf("http_%d", status)
}
