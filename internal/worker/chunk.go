package worker

import (
	"encoding/json"

	"scanpipeline/internal/job"
)

const oversizeCollapseMessage = "This hint has too many errors, please use webhint locally for more details"

// collapseOversizeHint replaces an individual hint's messages with the
// single synthetic entry required by §4.1.3 step 3. Callers decide when
// to apply it: proactively in collapseAnyOversizeHints, or reactively
// after a bus oversize rejection in sendOnePartition.
func collapseOversizeHint(h job.HintResult) job.HintResult {
	h.Messages = []job.Message{{Message: oversizeCollapseMessage}}
	return h
}

// collapseAnyOversizeHints proactively collapses any hint whose own
// messages already exceed maxSize, before attempting to serialize the
// whole ResultMessage (§4.1.3 step 3, "triggered proactively").
func collapseAnyOversizeHints(msg *job.ResultMessage, maxSize int) {
	for i, h := range msg.Hints {
		if len(h.Messages) == 0 {
			continue
		}
		size, err := jsonSize(h.Messages)
		if err == nil && size > maxSize {
			msg.Hints[i] = collapseOversizeHint(h)
		}
	}
}

// Partition splits msg's hints into groups such that each group's
// serialized ResultMessage fits within maxSize, using greedy first-fit
// by serialized hint size (§4.1.3 step 2); the group count is not
// guaranteed to be the minimum, and a hint that alone exceeds maxSize
// still gets a group of its own. Each
// partition shares id, partInfo, and status with the original.
func Partition(msg job.ResultMessage, maxSize int) []job.ResultMessage {
	base := msg
	base.Hints = nil
	baseSize, err := jsonSize(base)
	if err != nil {
		baseSize = 0
	}

	type bucket struct {
		hints []job.HintResult
		size  int
	}
	var buckets []*bucket

	for _, h := range msg.Hints {
		hSize, err := jsonSize(h)
		if err != nil {
			hSize = 0
		}

		placed := false
		for _, b := range buckets {
			if baseSize+b.size+hSize <= maxSize {
				b.hints = append(b.hints, h)
				b.size += hSize
				placed = true
				break
			}
		}
		if !placed {
			buckets = append(buckets, &bucket{hints: []job.HintResult{h}, size: hSize})
		}
	}

	if len(buckets) == 0 {
		return []job.ResultMessage{msg}
	}

	out := make([]job.ResultMessage, 0, len(buckets))
	for _, b := range buckets {
		part := base
		part.Hints = b.hints
		out = append(out, part)
	}
	return out
}

// PrepareForSend applies the full oversize policy of §4.1.3: collapse
// any individually-oversize hint, then measure, then partition if the
// whole message still doesn't fit. Returns one or more ResultMessages
// ready to hand to the queue, all sharing id/partInfo/status.
func PrepareForSend(msg job.ResultMessage, maxSize int) []job.ResultMessage {
	collapseAnyOversizeHints(&msg, maxSize)

	size, err := jsonSize(msg)
	if err == nil && size <= maxSize {
		return []job.ResultMessage{msg}
	}
	return Partition(msg, maxSize)
}

func jsonSize(v any) (int, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return 0, err
	}
	return len(b), nil
}
