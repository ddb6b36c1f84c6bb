package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/banshee-data/scansim/internal/lidar/advisory"
	"github.com/banshee-data/scansim/internal/lidar/beams"
	"github.com/banshee-data/scansim/internal/lidar/raycast"
)

// ScanRecord is one persisted scan.
type ScanRecord struct {
	SessionID       string          `json:"session_id"`
	Seq             int             `json:"seq"`
	Timestamp       float64         `json:"timestamp"`
	Pose            beams.Pose      `json:"-"`
	Ranges          []float64       `json:"ranges"`
	Endpoints       []r2.Vec        `json:"-"`
	OutsideBoundary bool            `json:"outside_boundary"`
	AdvisoryCodes   []advisory.Code `json:"advisory_codes,omitempty"`
}

// NewScanRecord captures the snapshot and advisories of res.
func NewScanRecord(sessionID string, seq int, res raycast.Result) *ScanRecord {
	rec := &ScanRecord{
		SessionID:       sessionID,
		Seq:             seq,
		OutsideBoundary: advisory.Has(res.Advisories, advisory.OutsideBoundary),
		AdvisoryCodes:   advisory.Codes(res.Advisories),
	}
	if snap := res.Snapshot; snap != nil {
		rec.Timestamp = snap.Timestamp
		rec.Pose = snap.Pose
		rec.Ranges = snap.Ranges
		rec.Endpoints = snap.Endpoints
	}
	return rec
}

// MarshalJSON encodes the pose as [x, y, heading] and endpoints as [x, y]
// pairs, matching the snapshot encoding.
func (r ScanRecord) MarshalJSON() ([]byte, error) {
	type alias ScanRecord
	return json.Marshal(struct {
		alias
		Pose          []float64    `json:"pose"`
		BeamEndpoints [][2]float64 `json:"beam_endpoints"`
	}{
		alias:         alias(r),
		Pose:          r.Pose.Slice(),
		BeamEndpoints: endpointPairs(r.Endpoints),
	})
}

// ScanStore provides persistence for scans.
type ScanStore struct {
	db *sql.DB
}

// NewScanStore creates a new ScanStore.
func NewScanStore(db *sql.DB) *ScanStore {
	return &ScanStore{db: db}
}

// Record inserts rec. The session must exist.
func (s *ScanStore) Record(rec *ScanRecord) error {
	args, err := scanArgs(rec)
	if err != nil {
		return fmt.Errorf("insert scan: %w", err)
	}
	query := `
		INSERT INTO scans (
			session_id, seq, timestamp, pose_x, pose_y, heading,
			ranges_json, endpoints_json, outside_boundary, advisory_codes
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	if _, err := s.db.Exec(query, append([]any{rec.SessionID, rec.Seq}, args...)...); err != nil {
		return fmt.Errorf("insert scan: %w", err)
	}
	return nil
}

// Append inserts rec as the next scan of its session and sets rec.Seq. The
// sequence number is chosen by the insert itself, so concurrent appends to
// one session never collide.
func (s *ScanStore) Append(rec *ScanRecord) error {
	args, err := scanArgs(rec)
	if err != nil {
		return fmt.Errorf("append scan: %w", err)
	}
	query := `
		INSERT INTO scans (
			session_id, seq, timestamp, pose_x, pose_y, heading,
			ranges_json, endpoints_json, outside_boundary, advisory_codes
		)
		SELECT ?, COALESCE(MAX(seq) + 1, 0), ?, ?, ?, ?, ?, ?, ?, ?
		FROM scans WHERE session_id = ?
		RETURNING seq
	`
	all := append([]any{rec.SessionID}, args...)
	all = append(all, rec.SessionID)
	if err := s.db.QueryRow(query, all...).Scan(&rec.Seq); err != nil {
		return fmt.Errorf("append scan: %w", err)
	}
	return nil
}

// scanArgs validates rec and returns the column values after session_id and
// seq.
func scanArgs(rec *ScanRecord) ([]any, error) {
	if rec.SessionID == "" {
		return nil, errors.New("missing session id")
	}
	if len(rec.Ranges) != len(rec.Endpoints) {
		return nil, fmt.Errorf("%d ranges for %d endpoints", len(rec.Ranges), len(rec.Endpoints))
	}
	rangesJSON, err := json.Marshal(rec.Ranges)
	if err != nil {
		return nil, fmt.Errorf("marshal ranges: %w", err)
	}
	endpointsJSON, err := json.Marshal(endpointPairs(rec.Endpoints))
	if err != nil {
		return nil, fmt.Errorf("marshal endpoints: %w", err)
	}
	return []any{
		rec.Timestamp,
		rec.Pose.X,
		rec.Pose.Y,
		rec.Pose.Heading,
		string(rangesJSON),
		string(endpointsJSON),
		rec.OutsideBoundary,
		joinCodes(rec.AdvisoryCodes),
	}, nil
}

const scanColumns = `session_id, seq, timestamp, pose_x, pose_y, heading,
	ranges_json, endpoints_json, outside_boundary, advisory_codes`

// ListBySession returns the scans of a session ordered by sequence number.
func (s *ScanStore) ListBySession(sessionID string) ([]*ScanRecord, error) {
	rows, err := s.db.Query(`SELECT `+scanColumns+`
		FROM scans
		WHERE session_id = ?
		ORDER BY seq
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list scans: %w", err)
	}
	defer rows.Close()

	var records []*ScanRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan scan row: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Latest returns the scan with the highest sequence number, or sql.ErrNoRows
// when the session has none.
func (s *ScanStore) Latest(sessionID string) (*ScanRecord, error) {
	row := s.db.QueryRow(`SELECT `+scanColumns+`
		FROM scans
		WHERE session_id = ?
		ORDER BY seq DESC
		LIMIT 1
	`, sessionID)
	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("latest scan: %w", err)
	}
	return rec, nil
}

// Count returns the number of scans recorded for a session.
func (s *ScanStore) Count(sessionID string) (int, error) {
	var n int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM scans WHERE session_id = ?", sessionID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count scans: %w", err)
	}
	return n, nil
}

// Sink returns a replay sink that records every scan under sessionID.
func (s *ScanStore) Sink(sessionID string) *ScanSink {
	return &ScanSink{store: s, sessionID: sessionID}
}

// ScanSink adapts a ScanStore to the replay player.
type ScanSink struct {
	store     *ScanStore
	sessionID string
}

// RecordScan stores res as scan seq.
func (k *ScanSink) RecordScan(ctx context.Context, seq int, res raycast.Result) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return k.store.Record(NewScanRecord(k.sessionID, seq, res))
}

func scanRecord(row rowScanner) (*ScanRecord, error) {
	var (
		rec                       ScanRecord
		rangesJSON, endpointsJSON string
		codes                     string
	)
	err := row.Scan(
		&rec.SessionID, &rec.Seq, &rec.Timestamp,
		&rec.Pose.X, &rec.Pose.Y, &rec.Pose.Heading,
		&rangesJSON, &endpointsJSON, &rec.OutsideBoundary, &codes,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(rangesJSON), &rec.Ranges); err != nil {
		return nil, fmt.Errorf("decode ranges: %w", err)
	}
	var pairs [][2]float64
	if err := json.Unmarshal([]byte(endpointsJSON), &pairs); err != nil {
		return nil, fmt.Errorf("decode endpoints: %w", err)
	}
	rec.Endpoints = make([]r2.Vec, len(pairs))
	for i, p := range pairs {
		rec.Endpoints[i] = r2.Vec{X: p[0], Y: p[1]}
	}
	rec.AdvisoryCodes = splitCodes(codes)
	return &rec, nil
}

func endpointPairs(vs []r2.Vec) [][2]float64 {
	out := make([][2]float64, len(vs))
	for i, v := range vs {
		out[i] = [2]float64{v.X, v.Y}
	}
	return out
}

func joinCodes(codes []advisory.Code) string {
	parts := make([]string, len(codes))
	for i, c := range codes {
		parts[i] = string(c)
	}
	return strings.Join(parts, ",")
}

func splitCodes(s string) []advisory.Code {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]advisory.Code, len(parts))
	for i, p := range parts {
		out[i] = advisory.Code(p)
	}
	return out
}
