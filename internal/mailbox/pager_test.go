package mailbox

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/mailgate/internal/model"
)

var testFolders = Folders{Inbox: "INBOX", Junk: "Junk"}

// fakeSession serves canned folder contents and records every
// protocol call it handles.
type fakeSession struct {
	// ids per folder, in server order (oldest first).
	ids map[string][]uint32
	// dates per folder and native id, used to build header payloads.
	dates map[string]map[uint32]time.Time
	// raw message payloads keyed by composite id.
	raw map[string][]byte
	// folders that fail on search or fetch.
	searchErr map[string]bool
	fetchErr  map[string]bool
	rawErr    bool

	searchCalls int
	fetchCalls  int
	rawCalls    int
}

func (f *fakeSession) SearchAll(folder string) ([]uint32, error) {
	f.searchCalls++
	if f.searchErr[folder] {
		return nil, fmt.Errorf("SELECT %s failed", folder)
	}
	return f.ids[folder], nil
}

func (f *fakeSession) FetchHeaders(folder string, ids []uint32) ([]HeaderRecord, error) {
	f.fetchCalls++
	if f.fetchErr[folder] {
		return nil, fmt.Errorf("FETCH in %s failed", folder)
	}

	records := make([]HeaderRecord, 0, len(ids))
	for _, id := range ids {
		date := time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC)
		if d, ok := f.dates[folder][id]; ok {
			date = d
		}
		header := fmt.Sprintf(
			"Subject: %s %d\r\nFrom: sender@example.com\r\nDate: %s\r\n\r\n",
			folder, id, date.Format(time.RFC1123Z),
		)
		records = append(records, HeaderRecord{NativeID: id, Header: []byte(header)})
	}
	return records, nil
}

func (f *fakeSession) FetchRawMessage(folder string, id uint32) ([]byte, error) {
	f.rawCalls++
	if f.rawErr {
		return nil, fmt.Errorf("FETCH in %s failed", folder)
	}
	return f.raw[MessageRef{Folder: folder, NativeID: id}.CompositeID()], nil
}

func messageIDs(listing *model.EmailListing) []string {
	out := make([]string, 0, len(listing.Emails))
	for _, e := range listing.Emails {
		out = append(out, e.MessageID)
	}
	return out
}

func TestListPageCrossFolder(t *testing.T) {
	s := &fakeSession{
		ids: map[string][]uint32{
			"INBOX": {1, 2, 3},
			"Junk":  {1, 2},
		},
	}

	listing := listPage(s, testFolders, "a@example.com", model.ViewAll, 1, 3, testLog())

	// The candidate order is newest-first per folder, inbox before
	// junk, so the first page holds the three newest inbox messages
	// and the total counts both folders.
	assert.Equal(t, 5, listing.TotalEmails)
	assert.ElementsMatch(t,
		[]string{"INBOX-3", "INBOX-2", "INBOX-1"},
		messageIDs(listing))
	assert.Equal(t, 1, listing.Page)
	assert.Equal(t, 3, listing.PageSize)
	assert.Equal(t, "a@example.com", listing.Address)
}

func TestListPageSecondPageSpansFolders(t *testing.T) {
	s := &fakeSession{
		ids: map[string][]uint32{
			"INBOX": {1, 2, 3},
			"Junk":  {1, 2},
		},
	}

	listing := listPage(s, testFolders, "a@example.com", model.ViewAll, 2, 3, testLog())

	assert.Equal(t, 5, listing.TotalEmails)
	assert.ElementsMatch(t, []string{"Junk-2", "Junk-1"}, messageIDs(listing))
}

func TestListPagePagesPartitionCandidates(t *testing.T) {
	s := &fakeSession{
		ids: map[string][]uint32{
			"INBOX": {1, 2, 3, 4, 5, 6, 7},
			"Junk":  {1, 2, 3},
		},
	}

	seen := make(map[string]bool)
	for page := 1; page <= 3; page++ {
		listing := listPage(s, testFolders, "a@example.com", model.ViewAll, page, 4, testLog())
		require.Equal(t, 10, listing.TotalEmails)
		for _, id := range messageIDs(listing) {
			assert.Falsef(t, seen[id], "message %s appeared on two pages", id)
			seen[id] = true
		}
	}
	assert.Len(t, seen, 10)
}

func TestListPageSortsByDecodedDate(t *testing.T) {
	s := &fakeSession{
		ids: map[string][]uint32{
			"INBOX": {1, 2},
			"Junk":  {1},
		},
		dates: map[string]map[uint32]time.Time{
			"INBOX": {
				1: time.Date(2025, 8, 10, 0, 0, 0, 0, time.UTC),
				2: time.Date(2025, 8, 5, 0, 0, 0, 0, time.UTC),
			},
			"Junk": {
				1: time.Date(2025, 8, 20, 0, 0, 0, 0, time.UTC),
			},
		},
	}

	listing := listPage(s, testFolders, "a@example.com", model.ViewAll, 1, 10, testLog())

	// Candidate order put INBOX first, but the visible page is ordered
	// by decoded date descending.
	assert.Equal(t, []string{"Junk-1", "INBOX-1", "INBOX-2"}, messageIDs(listing))
}

func TestListPageSingleFolderViews(t *testing.T) {
	s := &fakeSession{
		ids: map[string][]uint32{
			"INBOX": {1, 2, 3},
			"Junk":  {1, 2},
		},
	}

	inbox := listPage(s, testFolders, "a@example.com", model.ViewInbox, 1, 10, testLog())
	assert.Equal(t, 3, inbox.TotalEmails)
	assert.ElementsMatch(t, []string{"INBOX-3", "INBOX-2", "INBOX-1"}, messageIDs(inbox))

	junk := listPage(s, testFolders, "a@example.com", model.ViewJunk, 1, 10, testLog())
	assert.Equal(t, 2, junk.TotalEmails)
	assert.ElementsMatch(t, []string{"Junk-2", "Junk-1"}, messageIDs(junk))
}

func TestListPageSkipsUnavailableFolder(t *testing.T) {
	s := &fakeSession{
		ids: map[string][]uint32{
			"INBOX": {1, 2},
			"Junk":  {1},
		},
		searchErr: map[string]bool{"Junk": true},
	}

	listing := listPage(s, testFolders, "a@example.com", model.ViewAll, 1, 10, testLog())

	assert.Equal(t, 2, listing.TotalEmails)
	assert.ElementsMatch(t, []string{"INBOX-2", "INBOX-1"}, messageIDs(listing))
}

func TestListPageDropsFailedFetchGroup(t *testing.T) {
	s := &fakeSession{
		ids: map[string][]uint32{
			"INBOX": {1},
			"Junk":  {1},
		},
		fetchErr: map[string]bool{"Junk": true},
	}

	listing := listPage(s, testFolders, "a@example.com", model.ViewAll, 1, 10, testLog())

	// The total still reflects the candidate order; only the rows of
	// the failed group go missing from the page.
	assert.Equal(t, 2, listing.TotalEmails)
	assert.ElementsMatch(t, []string{"INBOX-1"}, messageIDs(listing))
}

func TestListPageBeyondLastPage(t *testing.T) {
	s := &fakeSession{
		ids: map[string][]uint32{"INBOX": {1, 2}, "Junk": {}},
	}

	listing := listPage(s, testFolders, "a@example.com", model.ViewAll, 5, 10, testLog())

	assert.Equal(t, 2, listing.TotalEmails)
	assert.Empty(t, listing.Emails)
	assert.Equal(t, 0, s.fetchCalls, "empty page must not fetch headers")
}

func TestListPageOneFetchPerFolder(t *testing.T) {
	s := &fakeSession{
		ids: map[string][]uint32{
			"INBOX": {1, 2, 3},
			"Junk":  {1, 2},
		},
	}

	listPage(s, testFolders, "a@example.com", model.ViewAll, 1, 10, testLog())

	assert.Equal(t, 2, s.fetchCalls)
}

func TestGroupByFolderKeepsContiguousOrder(t *testing.T) {
	refs := []MessageRef{
		{Folder: "INBOX", NativeID: 3},
		{Folder: "INBOX", NativeID: 2},
		{Folder: "Junk", NativeID: 9},
	}

	groups := groupByFolder(refs)

	require.Len(t, groups, 2)
	assert.Equal(t, "INBOX", groups[0].folder)
	assert.Equal(t, []uint32{3, 2}, groups[0].ids)
	assert.Equal(t, "Junk", groups[1].folder)
	assert.Equal(t, []uint32{9}, groups[1].ids)
}
