package mailbox

import (
	"github.com/emersion/go-sasl"
)

// xoauth2Client is a minimal SASL XOAUTH2 client. The mechanism sends
// a single initial response of the form
// "user=<user>\x01auth=Bearer <token>\x01\x01" and expects no
// challenge on success.
type xoauth2Client struct {
	username string
	token    string
}

// newXOAuth2Client returns a sasl.Client for the XOAUTH2 mechanism.
func newXOAuth2Client(username, token string) sasl.Client {
	return &xoauth2Client{username: username, token: token}
}

func (c *xoauth2Client) Start() (string, []byte, error) {
	ir := []byte("user=" + c.username + "\x01auth=Bearer " + c.token + "\x01\x01")
	return "XOAUTH2", ir, nil
}

// Next handles the error case where the server sends a base64 JSON
// challenge; replying with an empty response prompts the final NO.
func (c *xoauth2Client) Next(_ []byte) ([]byte, error) {
	return nil, nil
}
