package mailbox

import (
	"fmt"
	"strconv"
	"strings"
)

// MessageRef locates one message within one physical folder. NativeID
// is the server-assigned sequence number, valid only for the listing
// call that produced it.
type MessageRef struct {
	Folder   string
	NativeID uint32
}

// CompositeID renders the externally visible "<folder>-<nativeId>"
// identifier for a message reference.
func (r MessageRef) CompositeID() string {
	return fmt.Sprintf("%s-%d", r.Folder, r.NativeID)
}

// ParseCompositeID splits a composite message id back into its folder
// name and native id. The folder name may not contain the separator,
// so the split happens at the first dash; an id without a separator or
// with a non-numeric native part is an InvalidIDError.
func ParseCompositeID(id string) (MessageRef, error) {
	folder, rawID, ok := strings.Cut(id, "-")
	if !ok || folder == "" || rawID == "" {
		return MessageRef{}, &InvalidIDError{ID: id}
	}

	nativeID, err := strconv.ParseUint(rawID, 10, 32)
	if err != nil {
		return MessageRef{}, &InvalidIDError{ID: id}
	}

	return MessageRef{Folder: folder, NativeID: uint32(nativeID)}, nil
}
