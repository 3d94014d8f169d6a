package mailbox

import (
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/nhle/mailgate/internal/model"
)

// Folders maps the logical folder views onto physical folder names.
type Folders struct {
	Inbox string
	Junk  string
}

// Resolve returns the ordered physical folders participating in a view.
func (f Folders) Resolve(view model.FolderView) []string {
	switch view {
	case model.ViewInbox:
		return []string{f.Inbox}
	case model.ViewJunk:
		return []string{f.Junk}
	default:
		return []string{f.Inbox, f.Junk}
	}
}

// listPage assembles one listing page using the two-phase ordering:
// the candidate order is the concatenation of reversed per-folder id
// sequences (a cheap proxy for recency), and only the fetched page is
// sorted by decoded date. TotalEmails counts the candidate order, so
// page membership is stable across calls while display order within a
// page is accurate.
func listPage(
	s ProtocolSession,
	folders Folders,
	address string,
	view model.FolderView,
	page, pageSize int,
	log *logrus.Entry,
) *model.EmailListing {
	var refs []MessageRef
	for _, folder := range folders.Resolve(view) {
		ids, err := s.SearchAll(folder)
		if err != nil {
			// A folder that cannot be opened or searched is skipped;
			// it contributes nothing to the total.
			log.WithField("folder", folder).WithError(err).
				Warn("folder unavailable, skipping")
			continue
		}

		for i := len(ids) - 1; i >= 0; i-- {
			refs = append(refs, MessageRef{Folder: folder, NativeID: ids[i]})
		}
	}

	total := len(refs)

	start := (page - 1) * pageSize
	if start > total {
		start = total
	}
	end := start + pageSize
	if end > total {
		end = total
	}
	pageRefs := refs[start:end]

	type decoded struct {
		summary model.EmailSummary
		date    time.Time
	}

	now := time.Now()
	var rows []decoded
	for _, group := range groupByFolder(pageRefs) {
		records, err := s.FetchHeaders(group.folder, group.ids)
		if err != nil {
			// One failed batch drops only that folder's contribution
			// to the page.
			log.WithField("folder", group.folder).WithError(err).
				Warn("batch header fetch failed, dropping group")
			continue
		}

		for _, rec := range records {
			summary, date := decodeHeaderRecord(rec, group.folder, now, log)
			rows = append(rows, decoded{summary: summary, date: date})
		}
	}

	// Final, user-visible order: decoded date descending.
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].date.After(rows[j].date)
	})

	emails := make([]model.EmailSummary, 0, len(rows))
	for _, row := range rows {
		emails = append(emails, row.summary)
	}

	return &model.EmailListing{
		Address:     address,
		FolderView:  view,
		Page:        page,
		PageSize:    pageSize,
		TotalEmails: total,
		Emails:      emails,
	}
}

// folderGroup holds the page's ids for one folder, in candidate order.
type folderGroup struct {
	folder string
	ids    []uint32
}

// groupByFolder groups a page slice by folder without re-sorting:
// identifiers from the same folder are already contiguous in the
// candidate order, so one batched fetch per folder suffices.
func groupByFolder(refs []MessageRef) []folderGroup {
	var groups []folderGroup
	index := make(map[string]int)

	for _, ref := range refs {
		i, ok := index[ref.Folder]
		if !ok {
			i = len(groups)
			index[ref.Folder] = i
			groups = append(groups, folderGroup{folder: ref.Folder})
		}
		groups[i].ids = append(groups[i].ids, ref.NativeID)
	}

	return groups
}
