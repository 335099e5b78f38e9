package memory

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Buckets lists the snapshot buckets in the order durable stores write them.
var Buckets = []string{
	"animals",
	"semen_straws",
	"heat_cycles",
	"inseminations",
	"pregnancy_checks",
	"deliveries",
	"offspring",
	"lactations",
}

func (s *Snapshot) bucketTargets() map[string]any {
	return map[string]any{
		"animals":          &s.Animals,
		"semen_straws":     &s.SemenStraws,
		"heat_cycles":      &s.HeatCycles,
		"inseminations":    &s.Inseminations,
		"pregnancy_checks": &s.PregnancyCheck,
		"deliveries":       &s.Deliveries,
		"offspring":        &s.Offspring,
		"lactations":       &s.Lactations,
	}
}

// EncodeBuckets marshals each snapshot bucket to JSON.
func EncodeBuckets(snapshot Snapshot) (map[string][]byte, error) {
	targets := snapshot.bucketTargets()
	out := make(map[string][]byte, len(Buckets))
	for _, bucket := range Buckets {
		data, err := json.Marshal(targets[bucket])
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", bucket, err)
		}
		out[bucket] = data
	}
	return out, nil
}

// DecodeBucket unmarshals a stored bucket payload into the snapshot. Unknown
// buckets and empty payloads are ignored.
func DecodeBucket(snapshot *Snapshot, bucket string, payload []byte) error {
	if len(payload) == 0 {
		return nil
	}
	target, ok := snapshot.bucketTargets()[bucket]
	if !ok {
		return nil
	}
	if err := json.Unmarshal(payload, target); err != nil {
		return fmt.Errorf("decode %s: %w", bucket, err)
	}
	return nil
}

// BucketDiff remembers the last durable encoding of every bucket so snapshot
// stores rewrite only what a commit changed. It is not safe for concurrent
// use; stores call it from the commit hook, under the store lock.
type BucketDiff struct {
	written map[string][]byte
}

// Pending encodes snapshot and returns the buckets whose encoding differs from
// the last acknowledged write, keyed by bucket name.
func (d *BucketDiff) Pending(snapshot Snapshot) (map[string][]byte, error) {
	encoded, err := EncodeBuckets(snapshot)
	if err != nil {
		return nil, err
	}
	for bucket, data := range encoded {
		if prev, ok := d.written[bucket]; ok && bytes.Equal(prev, data) {
			delete(encoded, bucket)
		}
	}
	return encoded, nil
}

// Ack marks buckets as durably written.
func (d *BucketDiff) Ack(buckets map[string][]byte) {
	if d.written == nil {
		d.written = make(map[string][]byte, len(Buckets))
	}
	for bucket, data := range buckets {
		d.written[bucket] = data
	}
}

// Ordered returns the names of the given buckets in write order.
func Ordered(buckets map[string][]byte) []string {
	out := make([]string, 0, len(buckets))
	for _, name := range Buckets {
		if _, ok := buckets[name]; ok {
			out = append(out, name)
		}
	}
	return out
}
