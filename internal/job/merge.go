package job

// Merge applies the effects of an incoming ResultMessage onto a durable
// Job record, following the rules in the sync layer's merge algorithm:
// terminal error is absorbing, hint status is first-non-pending-wins,
// and a job only reaches "finished" once every hint is decided.
//
// Merge is commutative and idempotent: applying the same message twice,
// or applying two partitions of one oversize message in either order,
// yields the same dbJob.
func Merge(dbJob *Job, msg *ResultMessage) {
	if dbJob.Status == StatusError {
		return
	}

	if msg.Status == StatusStarted {
		if dbJob.Status == StatusPending {
			dbJob.Started = msg.Started
			dbJob.EngineVersion = msg.EngineVersion
			dbJob.Status = StatusStarted
		}
		return
	}

	for _, h := range msg.Hints {
		existing := dbJob.HintByName(h.Name)
		if existing == nil || existing.Status != HintPending {
			continue
		}
		existing.Status = h.Status
		existing.Messages = h.Messages
	}

	if msg.Status == StatusError {
		dbJob.Status = StatusError
		dbJob.Finished = msg.Finished
		dbJob.Error = msg.Error
		return
	}

	if dbJob.AllHintsDecided() {
		dbJob.Status = msg.Status
		dbJob.Finished = msg.Finished
	}
}
