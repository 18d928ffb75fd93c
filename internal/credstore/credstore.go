// Package credstore persists client credentials and team context in named
// slots backed by a local sqlite file. It is the single seam through which
// every component reads or mutates durable identity state.
package credstore

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/huddlehq/huddle/internal/crypto"
)

// Slot names a single persisted credential or display field.
type Slot string

const (
	SlotInviteToken   Slot = "invite_token"
	SlotUserToken     Slot = "user_token"
	SlotUserID        Slot = "user_id"
	SlotCurrentTeamID Slot = "current_team_id"
	SlotLastTeamID    Slot = "last_team_id"
	SlotTeamName      Slot = "team_name"
	SlotRole          Slot = "role"
	SlotCoachUserID   Slot = "coach_user_id"
)

// AllSlots lists every known slot, in stable order.
var AllSlots = []Slot{
	SlotInviteToken,
	SlotUserToken,
	SlotUserID,
	SlotCurrentTeamID,
	SlotLastTeamID,
	SlotTeamName,
	SlotRole,
	SlotCoachUserID,
}

// Group identifies the set of slots logically owned by one identity kind.
type Group string

const (
	GroupParent Group = "parent"
	GroupCoach  Group = "coach"
)

// Slots returns the slots cleared by a group sign-out. last_team_id belongs
// to neither group: it is startup state, not a credential, and survives
// sign-out so a returning parent lands back on their team.
func (g Group) Slots() []Slot {
	switch g {
	case GroupParent:
		return []Slot{SlotInviteToken, SlotCurrentTeamID, SlotTeamName, SlotRole}
	case GroupCoach:
		return []Slot{SlotUserToken, SlotUserID, SlotCoachUserID}
	}
	return nil
}

// Snapshot is a point-in-time read of every slot. Empty string means unset.
// The session resolver consumes snapshots, never the live store, so a single
// resolution never observes a half-applied mutation.
type Snapshot struct {
	InviteToken   string
	UserToken     string
	UserID        string
	CurrentTeamID string
	LastTeamID    string
	TeamName      string
	Role          string
	CoachUserID   string
}

// Store is the durable slot store. Safe for concurrent use; all mutations
// are whole-value overwrites keyed by slot name.
type Store struct {
	db     *sql.DB
	cipher *crypto.SlotCipher

	mu        sync.Mutex
	listeners []func()
}

// Open opens (creating if needed) the credential database at path. A nil
// cipher stores values in the clear.
func Open(path string, cipher *crypto.SlotCipher) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("creating state directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening credential store: %w", err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS credentials (
			slot       TEXT PRIMARY KEY,
			value      TEXT NOT NULL,
			updated_at INTEGER NOT NULL
		)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing credential store: %w", err)
	}

	return &Store{db: db, cipher: cipher}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// OnChange registers fn to run after every successful mutation. Mutations are
// candidate triggers for route re-evaluation; the subscriber decides.
func (s *Store) OnChange(fn func()) {
	s.mu.Lock()
	s.listeners = append(s.listeners, fn)
	s.mu.Unlock()
}

func (s *Store) notify() {
	s.mu.Lock()
	fns := make([]func(), len(s.listeners))
	copy(fns, s.listeners)
	s.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

// Get returns the value of a slot, or empty string if unset.
func (s *Store) Get(slot Slot) (string, error) {
	var stored string
	err := s.db.QueryRow(`SELECT value FROM credentials WHERE slot = ?`, string(slot)).Scan(&stored)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("reading slot %s: %w", slot, err)
	}
	value, err := s.cipher.Open(stored)
	if err != nil {
		return "", fmt.Errorf("reading slot %s: %w", slot, err)
	}
	return value, nil
}

// Set stores value in a slot, overwriting any previous value. Setting the
// empty string clears the slot.
func (s *Store) Set(slot Slot, value string) error {
	if value == "" {
		return s.Clear(slot)
	}

	stored, err := s.cipher.Seal(value)
	if err != nil {
		return fmt.Errorf("writing slot %s: %w", slot, err)
	}

	_, err = s.db.Exec(`
		INSERT INTO credentials (slot, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(slot) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		string(slot), stored, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("writing slot %s: %w", slot, err)
	}

	s.notify()
	return nil
}

// Clear removes a single slot. Clearing an unset slot is a no-op.
func (s *Store) Clear(slot Slot) error {
	if _, err := s.db.Exec(`DELETE FROM credentials WHERE slot = ?`, string(slot)); err != nil {
		return fmt.Errorf("clearing slot %s: %w", slot, err)
	}
	s.notify()
	return nil
}

// ClearGroup removes every slot owned by the group in one transaction, so no
// reader ever observes a half-cleared identity.
func (s *Store) ClearGroup(group Group) error {
	slots := group.Slots()
	if len(slots) == 0 {
		return fmt.Errorf("unknown credential group %q", group)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("clearing group %s: %w", group, err)
	}
	defer tx.Rollback()

	for _, slot := range slots {
		if _, err := tx.Exec(`DELETE FROM credentials WHERE slot = ?`, string(slot)); err != nil {
			return fmt.Errorf("clearing group %s: %w", group, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("clearing group %s: %w", group, err)
	}

	s.notify()
	return nil
}

// Snapshot reads all slots at once. Slots that fail to decrypt are treated
// as unset rather than failing the whole read; the resolver degrades to
// Anonymous on missing credentials, which is the safe direction.
func (s *Store) Snapshot() (Snapshot, error) {
	rows, err := s.db.Query(`SELECT slot, value FROM credentials`)
	if err != nil {
		return Snapshot{}, fmt.Errorf("reading credential snapshot: %w", err)
	}
	defer rows.Close()

	var snap Snapshot
	for rows.Next() {
		var slot, stored string
		if err := rows.Scan(&slot, &stored); err != nil {
			return Snapshot{}, fmt.Errorf("reading credential snapshot: %w", err)
		}
		value, err := s.cipher.Open(stored)
		if err != nil {
			continue
		}
		switch Slot(slot) {
		case SlotInviteToken:
			snap.InviteToken = value
		case SlotUserToken:
			snap.UserToken = value
		case SlotUserID:
			snap.UserID = value
		case SlotCurrentTeamID:
			snap.CurrentTeamID = value
		case SlotLastTeamID:
			snap.LastTeamID = value
		case SlotTeamName:
			snap.TeamName = value
		case SlotRole:
			snap.Role = value
		case SlotCoachUserID:
			snap.CoachUserID = value
		}
	}
	return snap, rows.Err()
}

// HasGroup reports whether any slot of the group is currently set.
func (s *Store) HasGroup(group Group) (bool, error) {
	for _, slot := range group.Slots() {
		v, err := s.Get(slot)
		if err != nil {
			return false, err
		}
		if v != "" {
			return true, nil
		}
	}
	return false, nil
}
