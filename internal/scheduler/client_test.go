package scheduler

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
)

func TestScheduleSummaryRefreshEnqueues(t *testing.T) {
	srv := miniredis.RunT(t)

	client, err := NewClient("redis://"+srv.Addr(), "test-queue")
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	defer func() {
		_ = client.Close()
	}()

	payload := SummaryRefreshPayload{LeadID: "11111111-1111-1111-1111-111111111111", TenantID: "t1"}
	if err := client.ScheduleSummaryRefresh(context.Background(), payload); err != nil {
		t.Fatalf("schedule: %v", err)
	}

	keys := srv.Keys()
	if len(keys) == 0 {
		t.Fatalf("expected asynq keys in redis after enqueue")
	}
}

func TestScheduleSummaryRefreshDeduplicates(t *testing.T) {
	srv := miniredis.RunT(t)

	client, err := NewClient("redis://"+srv.Addr(), "test-queue")
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	defer func() {
		_ = client.Close()
	}()

	payload := SummaryRefreshPayload{LeadID: "11111111-1111-1111-1111-111111111111", TenantID: "t1"}
	if err := client.ScheduleSummaryRefresh(context.Background(), payload); err != nil {
		t.Fatalf("first schedule: %v", err)
	}
	if err := client.ScheduleSummaryRefresh(context.Background(), payload); err != nil {
		t.Fatalf("duplicate schedule must not error: %v", err)
	}
}

func TestNilClientIsNoop(t *testing.T) {
	var client *Client
	if err := client.ScheduleSummaryRefresh(context.Background(), SummaryRefreshPayload{}); err != nil {
		t.Fatalf("nil client must be a no-op: %v", err)
	}
}
