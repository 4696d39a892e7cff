package ledger

import (
	"bytes"
	"context"
	"fmt"

	"github.com/kailas-cloud/docvault/internal/db"
)

// Report is the outcome of a hash chain verification.
type Report struct {
	Entries int64 `json:"entries"`
	Intact  bool  `json:"intact"`
	// BrokenSeq is the first entry that does not check out; 0 when intact.
	BrokenSeq int64  `json:"broken_seq,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

// Verify walks the ledger in sequence order and recomputes every entry hash.
func (s *Store) Verify(ctx context.Context) (Report, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT seq, key, value, prev_hash, hash FROM entries ORDER BY seq ASC`,
	)
	if err != nil {
		return Report{}, db.Wrap(db.OpVerify, "", err)
	}
	defer func() { _ = rows.Close() }()

	var (
		report   = Report{Intact: true}
		wantSeq  = int64(1)
		prevHash = genesisHash()
	)
	for rows.Next() {
		var (
			seq            int64
			key            string
			value, ph, got []byte
		)
		if err := rows.Scan(&seq, &key, &value, &ph, &got); err != nil {
			return Report{}, db.Wrap(db.OpVerify, "", err)
		}
		report.Entries++
		if !report.Intact {
			continue
		}

		switch {
		case seq != wantSeq:
			report.fail(wantSeq, fmt.Sprintf("sequence gap: found %d", seq))
		case !bytes.Equal(ph, prevHash):
			report.fail(seq, "prev_hash does not match the preceding entry")
		case !bytes.Equal(got, entryHash(seq, ph, key, value)):
			report.fail(seq, "entry hash mismatch")
		}
		wantSeq = seq + 1
		prevHash = got
	}
	if err := rows.Err(); err != nil {
		return Report{}, db.Wrap(db.OpVerify, "", err)
	}
	return report, nil
}

func (r *Report) fail(seq int64, reason string) {
	r.Intact = false
	r.BrokenSeq = seq
	r.Reason = reason
}
