package provider

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"zooclient/internal/domain"
	"zooclient/internal/storage/sqlite"
)

var (
	// ErrMissingSubjectID rejects an item insert with no subject id, before
	// anything is written.
	ErrMissingSubjectID = errors.New("refusing to insert an item without a subjectId")

	// ErrUnresolvedNextRef rejects "item/next" where a real item id is
	// required: the next token is a query, not a row.
	ErrUnresolvedNextRef = errors.New("'item/next' must be resolved to a real item id first")
)

// nextItemAttempts bounds the synchronous remote fallback in NextItem. The
// cap keeps a cold-start caller from blocking indefinitely.
const nextItemAttempts = 3

// SubjectSource fetches new subjects from the remote service.
type SubjectSource interface {
	RequestMoreItems(count int) ([]domain.Subject, error)
}

// SubjectAdder materializes fetched subjects as items. In synchronous mode
// the images are downloaded before it returns.
type SubjectAdder interface {
	AddSubjects(subjects []domain.Subject, async bool) error
}

// SyncRequester is the fire-and-forget background-sync signal. It is
// requested far more often than work is needed; implementations must treat
// it as idempotent.
type SyncRequester interface {
	RequestSync()
}

// Provider is the single entry point for CRUD on the local cache. It
// translates resource references and public field names into storage
// operations, resolves the "next" token, and commits finished
// classifications as one transaction.
type Provider struct {
	db       *sql.DB
	cacheDir string

	source SubjectSource
	adder  SubjectAdder
	sync   SyncRequester
}

func New(db *sql.DB, cacheDir string) *Provider {
	return &Provider{db: db, cacheDir: cacheDir}
}

// AttachRemote wires the collaborators used by the next-item fallback.
// Without them an empty cache simply yields an empty result.
func (p *Provider) AttachRemote(source SubjectSource, adder SubjectAdder) {
	p.source = source
	p.adder = adder
}

// AttachSyncRequester wires the background-sync signal.
func (p *Provider) AttachSyncRequester(sync SyncRequester) {
	p.sync = sync
}

func (p *Provider) requestSync() {
	if p.sync != nil {
		p.sync.RequestSync()
	}
}

// QueryOptions narrows a collection query. Field names are public names;
// unknown names are dropped.
type QueryOptions struct {
	Filter     map[string]any
	OrderBy    string
	Descending bool
	Limit      int
}

// QueryItems serves the item, item/{id} and item/next references.
func (p *Provider) QueryItems(ref Ref, opt QueryOptions) ([]domain.Item, error) {
	switch ref.Kind {
	case RefItems:
		where, args := buildFilter(opt.Filter, itemColumnMap)
		return sqlite.QueryItems(p.db, where, args, mapOrderBy(opt.OrderBy, opt.Descending, itemColumnMap), opt.Limit)
	case RefItem:
		where, args := buildFilter(opt.Filter, itemColumnMap)
		if where != "" {
			where = "_id = ? AND (" + where + ")"
		} else {
			where = "_id = ?"
		}
		return sqlite.QueryItems(p.db, where, append([]any{ref.ID}, args...), "", 1)
	case RefItemNext:
		return p.NextItem()
	}
	return nil, fmt.Errorf("%w: %s is not an item reference", ErrInvalidRef, ref)
}

// NextItem returns at most one item that is ready to classify. When the
// local cache is empty it falls back to fetching and importing one subject
// synchronously, a bounded number of times; exhausting the attempts yields
// an empty result, which callers must treat as "temporarily unavailable".
func (p *Provider) NextItem() ([]domain.Item, error) {
	item, err := sqlite.NextClassifiableItem(p.db)
	if err != nil {
		return nil, err
	}

	if item == nil {
		if !p.fetchOneSubjectSync() {
			return nil, nil
		}
		item, err = sqlite.NextClassifiableItem(p.db)
		if err != nil {
			return nil, err
		}
	}

	// Consuming an item means more should be pre-fetched.
	p.requestSync()

	if item == nil {
		return nil, nil
	}
	return []domain.Item{*item}, nil
}

// fetchOneSubjectSync is the cold-start fallback: the background sync has
// not populated the cache yet, so fetch and import one subject inline.
// Several rounds are tried because some subject groups can be unavailable
// on the server while others still work.
func (p *Provider) fetchOneSubjectSync() bool {
	if p.source == nil || p.adder == nil {
		return false
	}

	for attempt := 1; attempt <= nextItemAttempts; attempt++ {
		subjects, err := p.source.RequestMoreItems(1)
		if err != nil {
			log.Printf("next item: fetch attempt %d/%d failed: %v", attempt, nextItemAttempts, err)
			continue
		}
		if len(subjects) == 0 {
			log.Printf("next item: fetch attempt %d/%d returned no subjects", attempt, nextItemAttempts)
			continue
		}
		// Import synchronously: the caller needs the item fully downloaded
		// right now. A failed or partial import counts as a failed round.
		if err := p.adder.AddSubjects(subjects, false); err != nil {
			log.Printf("next item: import attempt %d/%d failed: %v", attempt, nextItemAttempts, err)
			continue
		}
		return true
	}

	log.Printf("next item: no subjects after %d attempts", nextItemAttempts)
	return false
}

// QueryAnswers serves the classification-answer references.
func (p *Provider) QueryAnswers(ref Ref, opt QueryOptions) ([]domain.AnswerRow, error) {
	switch ref.Kind {
	case RefAnswers:
		where, args := buildFilter(opt.Filter, answerColumnMap)
		return sqlite.QueryAnswers(p.db, where, args, mapOrderBy(opt.OrderBy, opt.Descending, answerColumnMap), opt.Limit)
	case RefAnswer:
		return sqlite.QueryAnswers(p.db, "_id = ?", []any{ref.ID}, "", 1)
	}
	return nil, fmt.Errorf("%w: %s is not a classification-answer reference", ErrInvalidRef, ref)
}

// QueryCheckboxes serves the classification-checkbox references.
func (p *Provider) QueryCheckboxes(ref Ref, opt QueryOptions) ([]domain.CheckboxRow, error) {
	switch ref.Kind {
	case RefCheckboxes:
		where, args := buildFilter(opt.Filter, checkboxColumnMap)
		return sqlite.QueryCheckboxes(p.db, where, args, mapOrderBy(opt.OrderBy, opt.Descending, checkboxColumnMap), opt.Limit)
	case RefCheckbox:
		return sqlite.QueryCheckboxes(p.db, "_id = ?", []any{ref.ID}, "", 1)
	}
	return nil, fmt.Errorf("%w: %s is not a classification-checkbox reference", ErrInvalidRef, ref)
}

// QueryFile returns the cached-file record behind a file/{id} reference.
func (p *Provider) QueryFile(ref Ref) (domain.FileRecord, error) {
	if ref.Kind != RefFile {
		return domain.FileRecord{}, fmt.Errorf("%w: %s is not a file reference", ErrInvalidRef, ref)
	}
	return sqlite.GetFileRecord(p.db, ref.ID)
}

// Insert creates one row of the referenced kind from public field values.
// Item inserts reserve the three cached-file slots first; any failure there
// aborts the insert with no item row written.
func (p *Provider) Insert(ref Ref, values map[string]any) (Ref, error) {
	var inserted Ref

	switch ref.Kind {
	case RefItems, RefItem:
		itemID, err := p.insertItem(values)
		if err != nil {
			return Ref{}, err
		}
		inserted = Ref{Kind: RefItem, ID: itemID}

	case RefAnswers, RefAnswer:
		cols, vals := mapValues(values, answerColumnMap)
		id, err := sqlite.InsertRow(p.db, sqlite.TableAnswers, cols, vals)
		if err != nil {
			return Ref{}, err
		}
		inserted = Ref{Kind: RefAnswer, ID: id}

	case RefCheckboxes, RefCheckbox:
		cols, vals := mapValues(values, checkboxColumnMap)
		id, err := sqlite.InsertRow(p.db, sqlite.TableCheckboxes, cols, vals)
		if err != nil {
			return Ref{}, err
		}
		inserted = Ref{Kind: RefCheckbox, ID: id}

	default:
		return Ref{}, fmt.Errorf("%w: cannot insert into %s", ErrInvalidRef, ref)
	}

	p.requestSync()
	return inserted, nil
}

func (p *Provider) insertItem(values map[string]any) (int64, error) {
	subjectID, _ := values["subjectId"].(string)
	if subjectID == "" {
		return 0, ErrMissingSubjectID
	}

	// Reserve the local cache slots for the three image variants before the
	// item row exists. The caller may have supplied remote URLs; the local
	// refs always point at our own files table.
	merged := make(map[string]any, len(values)+3)
	for key, value := range values {
		merged[key] = value
	}
	for _, col := range []string{"locationStandardUri", "locationThumbnailUri", "locationInvertedUri"} {
		fileID, _, err := sqlite.CreateFileRecord(p.db, p.cacheDir)
		if err != nil {
			return 0, fmt.Errorf("reserving cache file for %s: %w", col, err)
		}
		merged[col] = sqlite.FileRef(fileID)
	}

	cols, vals := mapValues(merged, itemColumnMap)
	return sqlite.InsertRow(p.db, sqlite.TableItems, cols, vals)
}

// Update applies a partial field set to the referenced row(s), returning
// the number of rows changed.
func (p *Provider) Update(ref Ref, values map[string]any) (int64, error) {
	var (
		table  string
		colMap map[string]string
		where  string
		args   []any
	)

	switch ref.Kind {
	case RefItems:
		table, colMap = sqlite.TableItems, itemColumnMap
	case RefItem:
		table, colMap = sqlite.TableItems, itemColumnMap
		where, args = "_id = ?", []any{ref.ID}
	case RefAnswers:
		table, colMap = sqlite.TableAnswers, answerColumnMap
	case RefAnswer:
		table, colMap = sqlite.TableAnswers, answerColumnMap
		where, args = "_id = ?", []any{ref.ID}
	case RefCheckboxes:
		table, colMap = sqlite.TableCheckboxes, checkboxColumnMap
	case RefCheckbox:
		table, colMap = sqlite.TableCheckboxes, checkboxColumnMap
		where, args = "_id = ?", []any{ref.ID}
	default:
		return 0, fmt.Errorf("%w: cannot update %s", ErrInvalidRef, ref)
	}

	cols, vals := mapValues(values, colMap)
	if len(cols) == 0 {
		return 0, nil
	}

	affected, err := sqlite.UpdateRows(p.db, table, cols, vals, where, args...)
	if err != nil {
		return 0, err
	}

	p.requestSync()
	return affected, nil
}

// Delete removes the referenced row(s). Deleting an item cascades to its
// classification rows and its cached files on disk.
func (p *Provider) Delete(ref Ref) (int64, error) {
	var (
		affected int64
		err      error
	)

	switch ref.Kind {
	case RefItem:
		err = sqlite.DeleteItemCascade(p.db, ref.ID)
		if err == nil {
			affected = 1
		}
	case RefItems:
		affected, err = p.deleteAllItems()
	case RefAnswer:
		affected, err = sqlite.DeleteRows(p.db, sqlite.TableAnswers, "_id = ?", ref.ID)
	case RefAnswers:
		affected, err = sqlite.DeleteRows(p.db, sqlite.TableAnswers, "")
	case RefCheckbox:
		affected, err = sqlite.DeleteRows(p.db, sqlite.TableCheckboxes, "_id = ?", ref.ID)
	case RefCheckboxes:
		affected, err = sqlite.DeleteRows(p.db, sqlite.TableCheckboxes, "")
	default:
		return 0, fmt.Errorf("%w: cannot delete %s", ErrInvalidRef, ref)
	}
	if err != nil {
		return 0, err
	}

	p.requestSync()
	return affected, nil
}

func (p *Provider) deleteAllItems() (int64, error) {
	items, err := sqlite.QueryItems(p.db, "", nil, "", 0)
	if err != nil {
		return 0, err
	}
	var deleted int64
	for i := range items {
		if err := sqlite.DeleteItemCascade(p.db, items[i].ID); err != nil {
			return deleted, err
		}
		deleted++
	}
	return deleted, nil
}

// SaveClassification commits a finished classification for the referenced
// item as one all-or-nothing transaction. A failure here means the batch
// was rolled back and nothing was persisted; callers treat it as
// unrecoverable, because silently losing part of a classification is worse
// than failing hard.
func (p *Provider) SaveClassification(ref Ref, rec domain.ClassificationRecord) error {
	if ref.Kind == RefItemNext {
		return ErrUnresolvedNextRef
	}
	if ref.Kind != RefItem {
		return fmt.Errorf("%w: cannot save a classification for %s", ErrInvalidRef, ref)
	}

	if err := sqlite.SaveClassification(p.db, ref.ID, rec, time.Now()); err != nil {
		return fmt.Errorf("saving classification for item %d: %w", ref.ID, err)
	}

	p.requestSync()
	return nil
}

// CountClassifiable reports how many items are ready to classify, used by
// the background top-up to decide whether to prefetch.
func (p *Provider) CountClassifiable() (int, error) {
	return sqlite.CountClassifiableItems(p.db)
}
