//go:build integration

package audit

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/jasonachkar/secure-api-gateway-sub001/internal/platform/kafka/producer"
	pkgaudit "github.com/jasonachkar/secure-api-gateway-sub001/pkg/platform/audit"
	"github.com/jasonachkar/secure-api-gateway-sub001/pkg/platform/audit/publisher"
	"github.com/jasonachkar/secure-api-gateway-sub001/pkg/testutil/containers"
)

func TestKafkaSinkThroughPublisher(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	ctx := context.Background()
	kafka := containers.GetManager().GetKafka(t)
	topic := "gateway-audit-sink"
	require.NoError(t, kafka.CreateTopic(ctx, topic))

	prod, err := producer.New(producer.DefaultConfig(kafka.Brokers), nil)
	require.NoError(t, err)
	defer prod.Close()

	pub := publisher.New(NewKafkaSink(prod, topic))
	require.NoError(t, pub.Emit(ctx, pkgaudit.Event{
		Action:      pkgaudit.ActionFamilyRevoked,
		PrincipalID: "u-42",
		FamilyID:    "fam-42",
	}))
	pub.Close()

	record := kafka.WaitForRecord(ctx, topic, 15*time.Second, func(r *kgo.Record) bool {
		return string(r.Key) == "u-42"
	})
	require.NotNil(t, record)

	var got pkgaudit.Event
	require.NoError(t, json.Unmarshal(record.Value, &got))
	require.Equal(t, pkgaudit.ActionFamilyRevoked, got.Action)
	require.Equal(t, "fam-42", got.FamilyID)
}
