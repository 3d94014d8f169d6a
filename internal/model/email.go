package model

// FolderView selects which physical folders participate in a listing.
type FolderView string

const (
	ViewInbox FolderView = "inbox"
	ViewJunk  FolderView = "junk"
	ViewAll   FolderView = "all"
)

// Valid reports whether v is one of the known folder views.
func (v FolderView) Valid() bool {
	switch v {
	case ViewInbox, ViewJunk, ViewAll:
		return true
	default:
		return false
	}
}

// EmailSummary is one row of a paginated listing.
type EmailSummary struct {
	// MessageID is the composite "<folder>-<nativeId>" identifier,
	// the only identifier exposed outside the engine.
	MessageID string `json:"message_id"`

	// Folder is the physical folder the message lives in.
	Folder string `json:"folder"`

	Subject string `json:"subject"`
	From    string `json:"from_email"`

	// Date is the decoded message date in RFC 3339 form. It is always
	// populated; when the header cannot be parsed the listing time is
	// substituted.
	Date string `json:"date"`

	IsRead         bool `json:"is_read"`
	HasAttachments bool `json:"has_attachments"`

	// SenderInitial is the upper-cased first alphabetic character of
	// the decoded From field, or "?" when there is none.
	SenderInitial string `json:"sender_initial"`
}

// EmailListing is one page of a cross-folder mailbox listing.
// It is immutable once constructed and safe to cache.
type EmailListing struct {
	Address    string     `json:"email_id"`
	FolderView FolderView `json:"folder_view"`
	Page       int        `json:"page"`
	PageSize   int        `json:"page_size"`

	// TotalEmails counts the message references matched across the
	// requested folders before pagination, not the rows in this page.
	TotalEmails int `json:"total_emails"`

	Emails []EmailSummary `json:"emails"`
}

// DualViewListing holds independent inbox and junk pages for the
// two-pane view.
type DualViewListing struct {
	Address     string         `json:"email_id"`
	InboxEmails []EmailSummary `json:"inbox_emails"`
	JunkEmails  []EmailSummary `json:"junk_emails"`
	InboxTotal  int            `json:"inbox_total"`
	JunkTotal   int            `json:"junk_total"`
}

// EmailDetail is the full content of a single message. It is produced
// per request and never cached.
type EmailDetail struct {
	MessageID string `json:"message_id"`
	Subject   string `json:"subject"`
	From      string `json:"from_email"`
	To        string `json:"to_email"`
	Date      string `json:"date"`
	BodyPlain string `json:"body_plain,omitempty"`
	BodyHTML  string `json:"body_html,omitempty"`
}
