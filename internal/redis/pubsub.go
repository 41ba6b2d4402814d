package redisx

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// RecordsPubSub fans out occupancy changes of scheduled departures so that
// other instances can drop their cached availability.
type RecordsPubSub struct {
	rdb     *redis.Client
	channel string
}

func NewRecordsPubSub(rdb *redis.Client) *RecordsPubSub {
	return &RecordsPubSub{
		rdb:     rdb,
		channel: ChannelRecordsChanged(),
	}
}

type recordChangedMsg struct {
	Type     string `json:"type"`
	RecordID int64  `json:"record_id"`
	TsUnix   int64  `json:"ts_unix"`
}

func (p *RecordsPubSub) PublishRecordChanged(ctx context.Context, recordID int64) error {
	msg := recordChangedMsg{
		Type:     "record_changed",
		RecordID: recordID,
		TsUnix:   time.Now().Unix(),
	}

	b, _ := json.Marshal(msg)

	return p.rdb.Publish(ctx, p.channel, b).Err()
}

func (p *RecordsPubSub) Subscribe(ctx context.Context, handler func(ctx context.Context, recordID int64)) error {
	sub := p.rdb.Subscribe(ctx, p.channel)
	defer sub.Close()

	ch := sub.Channel(redis.WithChannelSize(256))
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case m, ok := <-ch:
			if !ok {
				return nil
			}
			var ev recordChangedMsg
			if err := json.Unmarshal([]byte(m.Payload), &ev); err == nil &&
				ev.RecordID != 0 {
				handler(ctx, ev.RecordID)
			}
		}
	}
}
