// SPDX-FileCopyrightText: 2026 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package console

import (
	"context"
	"strings"
)

const (
	cmdSnapshotList   = "avd snapshot list"
	cmdSnapshotSave   = "avd snapshot save "
	cmdSnapshotLoad   = "avd snapshot load "
	cmdSnapshotDelete = "avd snapshot del "

	// Number of lines preceding the rows in a listing reply.
	snapshotListHeaderLines = 2
)

// Snapshot is a single row of a snapshot listing. All values are kept as
// printed by the emulator.
type Snapshot struct {
	ID    string
	Tag   string
	Size  string
	Date  string
	Clock string
}

// Snapshots provides the snapshot commands of a [Session].
//
// Snapshot names are sent as given. Names containing white space or control
// characters are not rejected and lead to server defined behavior.
type Snapshots struct {
	session *Session
}

// Session returns the session the commands are sent on.
func (s *Snapshots) Session() *Session {
	return s.session
}

// List returns the snapshots of the device in the order the emulator lists
// them.
func (s *Snapshots) List(ctx context.Context) ([]Snapshot, error) {
	reply, err := s.session.runCommand(ctx, cmdSnapshotList)
	if err != nil {
		return nil, err
	}

	return ParseSnapshotList(reply), nil
}

// Save saves the current state as snapshot with the given name.
func (s *Snapshots) Save(ctx context.Context, name string) (bool, error) {
	return s.session.runBoolCommand(ctx, cmdSnapshotSave+name)
}

// Load restores the snapshot with the given name.
func (s *Snapshots) Load(ctx context.Context, name string) (bool, error) {
	return s.session.runBoolCommand(ctx, cmdSnapshotLoad+name)
}

// Delete removes the snapshot with the given name.
func (s *Snapshots) Delete(ctx context.Context, name string) (bool, error) {
	return s.session.runBoolCommand(ctx, cmdSnapshotDelete+name)
}

// ParseSnapshotList parses the reply of the "avd snapshot list" command.
//
// The two header lines and the status line are skipped. Each remaining line
// is split on white space and the fields are assigned in order. Missing
// fields stay empty, surplus fields are ignored.
func ParseSnapshotList(reply Reply) []Snapshot {
	lines := reply.Lines()
	if len(lines) <= snapshotListHeaderLines+1 {
		return []Snapshot{}
	}

	rows := lines[snapshotListHeaderLines : len(lines)-1]
	snapshots := make([]Snapshot, 0, len(rows))

	for _, row := range rows {
		snapshots = append(snapshots, parseSnapshotRow(row))
	}

	return snapshots
}

func parseSnapshotRow(row string) Snapshot {
	var snapshot Snapshot

	targets := []*string{
		&snapshot.ID,
		&snapshot.Tag,
		&snapshot.Size,
		&snapshot.Date,
		&snapshot.Clock,
	}

	for idx, field := range strings.Fields(row) {
		if idx >= len(targets) {
			break
		}

		*targets[idx] = field
	}

	return snapshot
}
