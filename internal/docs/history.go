package docs

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"
)

const fileDataTimeFormat = "2006-01-02 15:04:05"

// defaultFileData answers "who created this document" when nothing was recorded.
var defaultFileData = FileData{Created: "2017-01-01", UserID: "uid-1", UserName: "John Smith"}

// ChangesFormat tags the shape a changes.txt record was written in.
type ChangesFormat int

const (
	FormatNone ChangesFormat = iota
	FormatLegacy
	FormatModern
)

func (f ChangesFormat) String() string {
	switch f {
	case FormatLegacy:
		return "legacy"
	case FormatModern:
		return "modern"
	default:
		return "none"
	}
}

// LegacyChange is the part of a flat-array element older editors wrote that
// names its author.
type LegacyChange struct {
	Date     string `json:"date"`
	UserID   string `json:"userid"`
	Username string `json:"username"`
}

// HistoryUser identifies the author of a change.
type HistoryUser struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Change is the part of a modern changes element that names its author.
type Change struct {
	Created string      `json:"created"`
	User    HistoryUser `json:"user"`
}

// HistoryContent is a changes record resolved into exactly one of its shapes.
// The record itself is kept as written: Changes is the stored changes array
// and Members the other top-level members of a modern record. Author is
// decoded from the first change, nil when the record has none.
type HistoryContent struct {
	Format  ChangesFormat
	Changes json.RawMessage
	Members map[string]json.RawMessage
	Author  *Change
}

// ParseHistoryContent classifies raw changes.txt data. Empty or "null" input
// yields FormatNone. A JSON array is the legacy shape; an object with a
// "changes" member is the modern shape.
func ParseHistoryContent(data []byte) (HistoryContent, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return HistoryContent{Format: FormatNone}, nil
	}

	if data[0] == '[' {
		var elems []json.RawMessage
		if err := json.Unmarshal(data, &elems); err != nil {
			return HistoryContent{}, fmt.Errorf("parsing legacy changes: %w", err)
		}
		content := HistoryContent{Format: FormatLegacy, Changes: json.RawMessage(data)}
		if len(elems) > 0 {
			var first LegacyChange
			if err := json.Unmarshal(elems[0], &first); err != nil {
				return HistoryContent{}, fmt.Errorf("parsing legacy change: %w", err)
			}
			content.Author = &Change{
				Created: first.Date,
				User:    HistoryUser{ID: first.UserID, Name: first.Username},
			}
		}
		return content, nil
	}

	var members map[string]json.RawMessage
	if err := json.Unmarshal(data, &members); err != nil {
		return HistoryContent{}, fmt.Errorf("parsing changes: %w", err)
	}
	changes, ok := members["changes"]
	if !ok {
		return HistoryContent{}, fmt.Errorf("parsing changes: object has no changes member")
	}
	delete(members, "changes")

	var elems []json.RawMessage
	if err := json.Unmarshal(changes, &elems); err != nil {
		return HistoryContent{}, fmt.Errorf("parsing modern changes: %w", err)
	}
	content := HistoryContent{Format: FormatModern, Changes: changes, Members: members}
	if len(elems) > 0 {
		var first Change
		if err := json.Unmarshal(elems[0], &first); err != nil {
			return HistoryContent{}, fmt.Errorf("parsing modern change: %w", err)
		}
		content.Author = &first
	}
	return content, nil
}

// HistoryRecord is the normalized description of one version, identical in
// shape whatever format its changes were recorded in. It encodes as the
// recorded members with key, version, created and user set on top.
type HistoryRecord struct {
	Key     string
	Version int
	Created string
	User    HistoryUser
	Changes json.RawMessage
	Members map[string]json.RawMessage
}

func (r HistoryRecord) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(r.Members)+5)
	for k, v := range r.Members {
		out[k] = v
	}
	if r.Changes != nil {
		out["changes"] = r.Changes
	}
	out["key"] = r.Key
	out["version"] = r.Version
	out["created"] = r.Created
	out["user"] = r.User
	return json.Marshal(out)
}

// BuildHistory converges content into a HistoryRecord. The author comes from
// the first change; when content carries no change at all, fallback (the
// document's creation metadata) supplies it. A legacy array is carried under
// Changes; a modern record is carried whole.
func BuildHistory(content HistoryContent, fallback FileData, key string, version int) HistoryRecord {
	rec := HistoryRecord{
		Key:     key,
		Version: version,
		Created: fallback.Created,
		User:    HistoryUser{ID: fallback.UserID, Name: fallback.UserName},
	}
	if content.Format == FormatNone {
		return rec
	}
	if content.Author != nil {
		rec.Created = content.Author.Created
		rec.User = content.Author.User
	}
	rec.Changes = content.Changes
	rec.Members = content.Members
	return rec
}

// FileData is the creation metadata of a document.
type FileData struct {
	Created  string
	UserID   string
	UserName string
}

func (d FileData) String() string {
	return d.Created + "," + d.UserID + "," + d.UserName
}

func parseFileData(line string) FileData {
	parts := strings.SplitN(strings.TrimRight(line, "\r\n"), ",", 3)
	var d FileData
	if len(parts) > 0 {
		d.Created = parts[0]
	}
	if len(parts) > 1 {
		d.UserID = parts[1]
	}
	if len(parts) > 2 {
		d.UserName = parts[2]
	}
	return d
}

// SaveFileData records who created a document, timestamped with the live
// file's modification time. The history directory is created if needed.
func (s *Service) SaveFileData(identity, fileName, userID, userName string) error {
	path, err := s.layout.StoragePath(fileName, identity)
	if err != nil {
		return err
	}
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat document: %w", err)
	}
	if _, err := s.layout.EnsureHistoryPath(fileName, identity); err != nil {
		return err
	}
	dataPath, err := s.layout.FileDataPath(fileName, identity)
	if err != nil {
		return err
	}

	data := FileData{
		Created:  formatFileDataTime(info.ModTime()),
		UserID:   userID,
		UserName: userName,
	}
	if err := os.WriteFile(dataPath, []byte(data.String()), 0644); err != nil {
		return fmt.Errorf("writing file data: %w", err)
	}
	return nil
}

// FileData returns the creation metadata of a document, or the default
// record when none was saved.
func (s *Service) FileData(identity, fileName string) (FileData, error) {
	path, err := s.layout.FileDataPath(fileName, identity)
	if err != nil {
		return FileData{}, err
	}
	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return defaultFileData, nil
	}
	if err != nil {
		return FileData{}, fmt.Errorf("reading file data: %w", err)
	}
	return parseFileData(string(raw)), nil
}

// Changes reads and classifies the changes record of a saved version.
// A missing record yields FormatNone.
func (s *Service) Changes(identity, fileName string, version int) (HistoryContent, error) {
	path, err := s.layout.ChangesPath(fileName, identity, version)
	if err != nil {
		return HistoryContent{}, err
	}
	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return HistoryContent{Format: FormatNone}, nil
	}
	if err != nil {
		return HistoryContent{}, fmt.Errorf("reading changes of version %d: %w", version, err)
	}
	content, err := ParseHistoryContent(raw)
	if err != nil {
		return HistoryContent{}, fmt.Errorf("version %d: %w", version, err)
	}
	return content, nil
}

// HistoryRef points the editor at the version a record was derived from.
type HistoryRef struct {
	Key string `json:"key"`
	URL string `json:"url"`
}

// HistoryData tells the editor where to fetch one version.
type HistoryData struct {
	Version    int         `json:"version"`
	Key        string      `json:"key"`
	URL        string      `json:"url"`
	Previous   *HistoryRef `json:"previous,omitempty"`
	ChangesURL string      `json:"changesUrl,omitempty"`
}

// DocumentHistory is the complete history view of a document.
type DocumentHistory struct {
	CurrentVersion int             `json:"currentVersion"`
	History        []HistoryRecord `json:"history"`
	Data           []HistoryData   `json:"data"`
}

// History builds one record per version 1..current, where current is the
// live document (saved versions + 1). The changes that produced version i+1
// are stored alongside saved version i. The versions are probed once.
func (s *Service) History(caller Caller, fileName string) (*DocumentHistory, error) {
	name, err := s.layout.FileName(fileName)
	if err != nil {
		return nil, err
	}
	count, hasHistory, err := s.savedVersions(name, caller.Identity)
	if err != nil {
		return nil, err
	}
	currentKey, err := s.keyFor(caller, name, count, hasHistory)
	if err != nil {
		return nil, err
	}
	fallback, err := s.FileData(caller.Identity, name)
	if err != nil {
		return nil, err
	}

	current := count + 1
	out := &DocumentHistory{CurrentVersion: current}
	keys := make([]string, current+1)
	for i := 1; i <= current; i++ {
		key := currentKey
		if i < current {
			key, err = s.readVersionKey(name, caller.Identity, i)
			if err != nil {
				return nil, err
			}
		}
		keys[i] = key

		content := HistoryContent{Format: FormatNone}
		if i > 1 {
			content, err = s.Changes(caller.Identity, name, i-1)
			if err != nil {
				return nil, err
			}
		}
		out.History = append(out.History, BuildHistory(content, fallback, key, i))

		data := HistoryData{Version: i, Key: key, URL: s.versionURL(caller, name, i, current)}
		if i > 1 {
			diff, err := s.layout.DiffPath(name, caller.Identity, i-1)
			if err != nil {
				return nil, err
			}
			ok, err := exists(diff)
			if err != nil {
				return nil, fmt.Errorf("checking diff of version %d: %w", i-1, err)
			}
			if ok {
				data.Previous = &HistoryRef{Key: keys[i-1], URL: s.versionURL(caller, name, i-1, current)}
				data.ChangesURL = s.PublicFileURI(caller, name, i-1) + "/" + diffFileName
			}
		}
		out.Data = append(out.Data, data)
	}
	return out, nil
}

// versionURL addresses the content of version i: the live file for the
// current version, otherwise the snapshot replaced by version i.
func (s *Service) versionURL(caller Caller, name string, i, current int) string {
	if i == current {
		return s.PublicFileURI(caller, name, 0)
	}
	return s.PublicFileURI(caller, name, i) + "/" + prevFilePrefix + s.types.Extension(name)
}

func (s *Service) readVersionKey(name, identity string, version int) (string, error) {
	path, err := s.layout.KeyPath(name, identity, version)
	if err != nil {
		return "", err
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading key of version %d: %w", version, err)
	}
	return strings.TrimSpace(string(raw)), nil
}

func formatFileDataTime(t time.Time) string {
	return t.Format(fileDataTimeFormat)
}
