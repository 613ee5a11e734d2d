// Package subjects turns fetched subjects into fully cached local items.
package subjects

import (
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"sync"
	"time"

	"zooclient/internal/domain"
	"zooclient/internal/provider"
)

const defaultDownloadTimeout = 60 * time.Second

// imageVariant ties one remote-URL field of an item to its local file ref
// and downloaded flag.
type imageVariant struct {
	remoteURL      func(*domain.Item) string
	localRef       func(*domain.Item) string
	downloadedFlag string
}

var imageVariants = []imageVariant{
	{
		remoteURL:      func(it *domain.Item) string { return it.LocationStandardRemote },
		localRef:       func(it *domain.Item) string { return it.LocationStandard },
		downloadedFlag: "locationStandardDownloaded",
	},
	{
		remoteURL:      func(it *domain.Item) string { return it.LocationThumbnailRemote },
		localRef:       func(it *domain.Item) string { return it.LocationThumbnail },
		downloadedFlag: "locationThumbnailDownloaded",
	},
	{
		remoteURL:      func(it *domain.Item) string { return it.LocationInvertedRemote },
		localRef:       func(it *domain.Item) string { return it.LocationInverted },
		downloadedFlag: "locationInvertedDownloaded",
	},
}

// Adder imports subjects through the provider and downloads their images
// into the cache files the provider reserved.
type Adder struct {
	store      *provider.Provider
	httpClient *http.Client

	downloads sync.WaitGroup
}

func NewAdder(store *provider.Provider, timeout time.Duration) *Adder {
	if timeout <= 0 {
		timeout = defaultDownloadTimeout
	}
	return &Adder{
		store:      store,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// AddSubjects inserts each subject as an item and downloads its three image
// variants. In synchronous mode every image is on disk before AddSubjects
// returns, and any failure fails the whole call; in async mode the
// downloads run in the background and failures are only logged (the item
// simply stays ineligible until a later sync retries it).
func (a *Adder) AddSubjects(subjects []domain.Subject, async bool) error {
	for _, subject := range subjects {
		item, fresh, err := a.insertSubject(subject)
		if err != nil {
			return err
		}
		if !fresh {
			// Already imported earlier; its downloads are handled by the
			// sync that created it.
			continue
		}

		if async {
			a.downloads.Add(1)
			go func(item domain.Item) {
				defer a.downloads.Done()
				if err := a.downloadImages(&item); err != nil {
					log.Printf("background download for item %d: %v", item.ID, err)
				}
			}(*item)
			continue
		}

		if err := a.downloadImages(item); err != nil {
			return fmt.Errorf("downloading images for item %d: %w", item.ID, err)
		}
	}
	return nil
}

// Wait blocks until all background downloads have finished.
func (a *Adder) Wait() {
	a.downloads.Wait()
}

// insertSubject creates the item row unless the subject is already present.
// The returned item carries the local file refs the provider reserved.
func (a *Adder) insertSubject(subject domain.Subject) (*domain.Item, bool, error) {
	existing, err := a.store.QueryItems(
		provider.Ref{Kind: provider.RefItems},
		provider.QueryOptions{Filter: map[string]any{"subjectId": subject.SubjectID}, Limit: 1},
	)
	if err != nil {
		return nil, false, err
	}
	if len(existing) > 0 {
		return &existing[0], false, nil
	}

	ref, err := a.store.Insert(provider.Ref{Kind: provider.RefItems}, map[string]any{
		"subjectId":                  subject.SubjectID,
		"zooniverseId":               subject.ZooniverseID,
		"groupId":                    subject.GroupID,
		"locationStandardUriRemote":  subject.LocationStandard,
		"locationThumbnailUriRemote": subject.LocationThumbnail,
		"locationInvertedUriRemote":  subject.LocationInverted,
	})
	if err != nil {
		return nil, false, fmt.Errorf("inserting subject %q: %w", subject.SubjectID, err)
	}

	items, err := a.store.QueryItems(ref, provider.QueryOptions{})
	if err != nil {
		return nil, false, err
	}
	if len(items) != 1 {
		return nil, false, fmt.Errorf("inserted item %s not found", ref)
	}
	return &items[0], true, nil
}

// downloadImages fetches the three image variants into their reserved cache
// files, flipping each downloaded flag as it lands. A missing remote URL
// for a variant fails the item: it could never become classifiable.
func (a *Adder) downloadImages(item *domain.Item) error {
	for _, variant := range imageVariants {
		remote := variant.remoteURL(item)
		if remote == "" {
			return fmt.Errorf("item %d has no remote URL for %s", item.ID, variant.downloadedFlag)
		}

		fileRef, err := provider.ParseRef(variant.localRef(item))
		if err != nil {
			return fmt.Errorf("item %d: %w", item.ID, err)
		}
		rec, err := a.store.QueryFile(fileRef)
		if err != nil {
			return err
		}

		if err := a.downloadTo(remote, rec.Path); err != nil {
			return fmt.Errorf("downloading %s: %w", remote, err)
		}

		if _, err := a.store.Update(provider.ItemRef(item.ID), map[string]any{
			variant.downloadedFlag: true,
		}); err != nil {
			return err
		}
	}
	return nil
}

func (a *Adder) downloadTo(remoteURL, path string) error {
	resp, err := a.httpClient.Get(remoteURL)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
