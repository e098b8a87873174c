// Package teacherconnector implements the teacher-side owner of one
// session per student. It runs a read loop that consumes JSON messages,
// binary frames, and reassembled UDP frames into the session registry,
// and a write loop that drains the outbound command channel — the
// mouse-move batching algorithm is the hot spot here.
package teacherconnector

import (
	"context"
	"time"

	"github.com/classroomlink/link/internal/logging"
	"github.com/classroomlink/link/internal/proto"
)

var log = logging.L("teacherconnector")

const (
	batchWindow     = 16 * time.Millisecond
	batchMaxEvents  = 10
	batchPollBudget = 1 * time.Millisecond
)

// Sender writes one outbound Command to the wire.
type Sender func(proto.Command) error

// RunWriteLoop drains commands and writes them via send, coalescing
// contiguous mouse moves into batch messages, until the channel closes
// or ctx is cancelled.
func RunWriteLoop(ctx context.Context, commands <-chan proto.Command, send Sender) error {
	for {
		var cmd proto.Command
		var ok bool
		select {
		case <-ctx.Done():
			return nil
		case cmd, ok = <-commands:
			if !ok {
				return nil
			}
		}

		if !cmd.NeedsBatching() {
			if err := send(cmd); err != nil {
				return err
			}
			continue
		}

		batch, held := drainMouseBatch(ctx, commands, cmd)

		var emit proto.Command
		if len(batch) >= 2 {
			emit = proto.NewMouseInputBatch(batch)
		} else {
			emit = proto.NewMouseInput(batch[0])
		}
		if err := send(emit); err != nil {
			return err
		}

		if held != nil {
			if err := send(*held); err != nil {
				return err
			}
		}
	}
}

// drainMouseBatch implements step 2-3 of the batching algorithm: seed
// the batch with the given move, then greedily drain further commands
// with a per-wait budget of min(1ms, remaining_time) until the batch
// reaches 10 events or 16ms has elapsed. A non-move command encountered
// while draining is held aside and returned for immediate dispatch.
func drainMouseBatch(ctx context.Context, commands <-chan proto.Command, seed proto.Command) ([]proto.MouseEvent, *proto.Command) {
	batch := []proto.MouseEvent{*seed.Mouse}
	deadline := time.Now().Add(batchWindow)
	var held *proto.Command

drain:
	for len(batch) < batchMaxEvents {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			break
		}
		wait := batchPollBudget
		if remaining < wait {
			wait = remaining
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			break drain
		case cmd, ok := <-commands:
			timer.Stop()
			if !ok {
				break drain
			}
			if cmd.NeedsBatching() {
				batch = append(batch, *cmd.Mouse)
				continue
			}
			held = &cmd
			break drain
		case <-timer.C:
		}
	}

	return batch, held
}
