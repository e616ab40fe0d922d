package localdb

import (
	"database/sql"
	"embed"
	"fmt"
	"log/slog"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Cache is the sqlite-backed table set a rekordbox export hydrates into,
// keyed by media fingerprint so repeated acquisitions of the same media
// skip re-fetching and re-parsing (spec.md §4.6, §8 scenario S6).
type Cache struct {
	db     *sql.DB
	logger *slog.Logger
}

// OpenCache opens (creating if needed) the sqlite cache file under dataDir
// and applies any pending migrations.
func OpenCache(dataDir string, logger *slog.Logger) (*Cache, error) {
	path := filepath.Join(dataDir, "prolink-localdb.sqlite3")
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=ON")
	if err != nil {
		return nil, fmt.Errorf("localdb: open cache: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("localdb: enable WAL: %w", err)
	}

	c := &Cache{db: db, logger: logger}
	if err := c.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("localdb: migrate cache: %w", err)
	}
	return c, nil
}

func (c *Cache) Close() error { return c.db.Close() }

func (c *Cache) migrate() error {
	if _, err := c.db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY, applied_at DATETIME DEFAULT CURRENT_TIMESTAMP)`); err != nil {
		return err
	}
	var current int
	if err := c.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&current); err != nil {
		return err
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		var version int
		if _, err := fmt.Sscanf(entry.Name(), "%d_", &version); err != nil || version <= current {
			continue
		}
		content, err := migrationsFS.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return err
		}
		c.logger.Info("applying localdb migration", "version", version, "file", entry.Name())
		if _, err := c.db.Exec(string(content)); err != nil {
			return fmt.Errorf("apply migration %s: %w", entry.Name(), err)
		}
		if _, err := c.db.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			return err
		}
	}
	return nil
}

// IsCached reports whether fingerprint has already been fully hydrated.
func (c *Cache) IsCached(fingerprint string) (bool, error) {
	var n int
	err := c.db.QueryRow("SELECT COUNT(1) FROM media_cache WHERE fingerprint = ?", fingerprint).Scan(&n)
	return n > 0, err
}

// HydrationEvent reports progress through Hydrate, one per inserted row
// (spec.md §4.6).
type HydrationEvent struct {
	Table    string
	Complete int
	Total    int
}

// Hydrate inserts every row decoded from an export.pdb into the cache under
// fingerprint, reporting progress and yielding cooperatively after each
// insert so I/O and UI tasks can interleave (spec.md §4.6).
func (c *Cache) Hydrate(fingerprint string, rows []Row, onProgress func(HydrationEvent)) error {
	tx, err := c.db.Begin()
	if err != nil {
		return fmt.Errorf("localdb: begin hydration tx: %w", err)
	}
	defer tx.Rollback()

	total := len(rows)
	for i, row := range rows {
		table, err := insertRow(tx, fingerprint, row)
		if err != nil {
			return fmt.Errorf("localdb: insert row %d: %w", i, err)
		}
		if onProgress != nil && table != "" {
			onProgress(HydrationEvent{Table: table, Complete: i + 1, Total: total})
		}
		runtime.Gosched()
	}

	if _, err := tx.Exec("INSERT OR REPLACE INTO media_cache (fingerprint) VALUES (?)", fingerprint); err != nil {
		return fmt.Errorf("localdb: mark fingerprint cached: %w", err)
	}
	return tx.Commit()
}

func insertRow(tx *sql.Tx, fingerprint string, row Row) (string, error) {
	switch row.PageType {
	case PageTracks:
		t, err := decodeTrackRow(row.Fields)
		if err != nil {
			return "", err
		}
		_, err = tx.Exec(`INSERT OR REPLACE INTO tracks
			(fingerprint, id, artist_id, album_id, genre_id, label_id, key_id, artwork_id, tempo, duration, rating, title, analyze_path, file_name, date_added)
			VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
			fingerprint, t.ID, t.ArtistID, t.AlbumID, t.GenreID, t.LabelID, t.KeyID, t.ArtworkID,
			t.Tempo, t.Duration, t.Rating, t.Title, t.AnalyzePath, t.FileName, t.DateAdded)
		return "tracks", err

	case PageArtists, PageGenres, PageAlbums, PageLabels, PageKeys, PageColors:
		n, err := decodeNamedRow(row.Fields)
		if err != nil {
			return "", err
		}
		_, err = tx.Exec(`INSERT OR REPLACE INTO named_rows (fingerprint, page_type, id, name) VALUES (?,?,?,?)`,
			fingerprint, row.PageType, n.ID, n.Name)
		return "named_rows", err

	case PageArtwork:
		a, err := decodeArtworkRow(row.Fields)
		if err != nil {
			return "", err
		}
		_, err = tx.Exec(`INSERT OR REPLACE INTO artwork (fingerprint, id, path) VALUES (?,?,?)`,
			fingerprint, a.ID, a.Path)
		return "artwork", err

	case PagePlaylistTree:
		n, err := decodePlaylistNodeRow(row.Fields)
		if err != nil {
			return "", err
		}
		_, err = tx.Exec(`INSERT OR REPLACE INTO playlist_nodes (fingerprint, id, parent_id, sort_order, is_folder, name) VALUES (?,?,?,?,?,?)`,
			fingerprint, n.ID, n.ParentID, n.SortOrder, n.IsFolder, n.Name)
		return "playlist_nodes", err

	case PagePlaylistEntries:
		e, err := decodePlaylistEntryRow(row.Fields)
		if err != nil {
			return "", err
		}
		_, err = tx.Exec(`INSERT OR REPLACE INTO playlist_entries (fingerprint, playlist_id, track_id, entry_index) VALUES (?,?,?,?)`,
			fingerprint, e.PlaylistID, e.TrackID, e.EntryIndex)
		return "playlist_entries", err

	default:
		return "", nil // unknown page types are ignored (spec.md §4.6)
	}
}

// GetArtwork returns one hydrated artwork row by id, or sql.ErrNoRows if
// absent.
func (c *Cache) GetArtwork(fingerprint string, id uint32) (Artwork, error) {
	var a Artwork
	err := c.db.QueryRow("SELECT id, path FROM artwork WHERE fingerprint = ? AND id = ?", fingerprint, id).Scan(&a.ID, &a.Path)
	return a, err
}

// GetTrack returns one hydrated track by id, or sql.ErrNoRows if absent.
func (c *Cache) GetTrack(fingerprint string, id uint32) (Track, error) {
	var t Track
	err := c.db.QueryRow(`SELECT id, artist_id, album_id, genre_id, label_id, key_id, artwork_id,
		tempo, duration, rating, title, analyze_path, file_name, date_added
		FROM tracks WHERE fingerprint = ? AND id = ?`, fingerprint, id).Scan(
		&t.ID, &t.ArtistID, &t.AlbumID, &t.GenreID, &t.LabelID, &t.KeyID, &t.ArtworkID,
		&t.Tempo, &t.Duration, &t.Rating, &t.Title, &t.AnalyzePath, &t.FileName, &t.DateAdded)
	return t, err
}

// ListPlaylistEntries returns every track reference under playlistID, in
// stored entry order.
func (c *Cache) ListPlaylistEntries(fingerprint string, playlistID uint32) ([]PlaylistEntry, error) {
	rows, err := c.db.Query(`SELECT playlist_id, track_id, entry_index FROM playlist_entries
		WHERE fingerprint = ? AND playlist_id = ? ORDER BY entry_index`, fingerprint, playlistID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []PlaylistEntry
	for rows.Next() {
		var e PlaylistEntry
		if err := rows.Scan(&e.PlaylistID, &e.TrackID, &e.EntryIndex); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// ListPlaylistNodes returns every PLAYLIST_TREE row under fingerprint.
func (c *Cache) ListPlaylistNodes(fingerprint string) ([]PlaylistNode, error) {
	rows, err := c.db.Query(`SELECT id, parent_id, sort_order, is_folder, name FROM playlist_nodes
		WHERE fingerprint = ? ORDER BY parent_id, sort_order`, fingerprint)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []PlaylistNode
	for rows.Next() {
		var n PlaylistNode
		if err := rows.Scan(&n.ID, &n.ParentID, &n.SortOrder, &n.IsFolder, &n.Name); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}
