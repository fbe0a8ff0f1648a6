//go:build integration

package auditlog_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	"covenant/internal/auditlog"
	"covenant/internal/platform/kafka/producer"
	"covenant/pkg/testutil/containers"
)

const testTopic = "covenant.consent-log.test"

func TestKafkaSinkDeliversEntries(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	kafka := containers.GetManager().GetKafka(t)
	require.NoError(t, kafka.CreateTopic(ctx, testTopic, 1, 1))

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	p, err := producer.New(producer.Config{
		Brokers:         kafka.Brokers,
		Acks:            "all",
		Retries:         3,
		DeliveryTimeout: 10 * time.Second,
	}, logger)
	require.NoError(t, err)
	defer p.Close()

	sink := auditlog.NewKafkaSink(p, testTopic)

	principal := uuid.NewString()
	entry := auditlog.Entry{
		ID:          uuid.NewString(),
		Timestamp:   time.Now().UTC(),
		PrincipalID: principal,
		Action:      auditlog.ActionWithdraw,
		PurposeID:   "analytics",
		IPAddress:   "203.0.113.0",
		UserAgent:   "test-agent",
	}
	require.NoError(t, sink.Send(ctx, entry))

	consumer, err := kafka.NewConsumer("sink-test-"+uuid.NewString(), testTopic)
	require.NoError(t, err)
	defer consumer.Close()

	record := kafka.WaitForMessage(ctx, consumer, 30*time.Second, func(r *kgo.Record) bool {
		return string(r.Key) == principal
	})
	require.NotNil(t, record, "expected entry on the consent log topic")

	var got auditlog.Entry
	require.NoError(t, json.Unmarshal(record.Value, &got))
	require.Equal(t, entry.ID, got.ID)
	require.Equal(t, auditlog.ActionWithdraw, got.Action)
	require.Equal(t, "analytics", got.PurposeID)

	var action string
	for _, h := range record.Headers {
		if h.Key == "action" {
			action = string(h.Value)
		}
	}
	require.Equal(t, "withdraw", action)
}
