// Package imapx wraps the go-imap v2 client behind a small session
// interface so the export pipeline can be driven against a fake in tests.
package imapx

import (
	"crypto/tls"
	"fmt"
	"net"
	"strconv"

	imapv2 "github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
)

// Session is the subset of an authenticated IMAP connection the exporter
// needs. A single session must not be shared across concurrent calls.
type Session interface {
	Login(username, password string) error
	// ListFolders returns all folder names, decoded from modified UTF-7.
	ListFolders() ([]string, error)
	// Select opens a folder and returns its message count.
	Select(folder string) (uint32, error)
	// SearchAll returns every message identifier in the selected folder,
	// in server order.
	SearchAll() ([]imapv2.UID, error)
	// Fetch returns the raw RFC 822 bytes of one message.
	Fetch(uid imapv2.UID) ([]byte, error)
	MarkDeleted(uid imapv2.UID) error
	Expunge() error
	Logout() error
}

// Client is the imapclient-backed Session implementation.
type Client struct {
	client *imapclient.Client
}

var _ Session = (*Client)(nil)

// Dial connects to an IMAP server over TLS.
func Dial(server string, port int) (*Client, error) {
	address := net.JoinHostPort(server, strconv.Itoa(port))
	options := &imapclient.Options{
		TLSConfig: &tls.Config{ServerName: server},
	}

	client, err := imapclient.DialTLS(address, options)
	if err != nil {
		return nil, fmt.Errorf("dial imap %s: %w", address, err)
	}

	return &Client{client: client}, nil
}

func (c *Client) Login(username, password string) error {
	if err := c.client.Login(username, password).Wait(); err != nil {
		return fmt.Errorf("imap login failed: %w", err)
	}
	return nil
}

func (c *Client) ListFolders() ([]string, error) {
	mailboxes, err := c.client.List("", "*", nil).Collect()
	if err != nil {
		return nil, fmt.Errorf("list folders: %w", err)
	}

	names := make([]string, 0, len(mailboxes))
	for _, mbox := range mailboxes {
		names = append(names, DecodeUTF7(mbox.Mailbox))
	}
	return names, nil
}

func (c *Client) Select(folder string) (uint32, error) {
	data, err := c.client.Select(folder, nil).Wait()
	if err != nil {
		return 0, fmt.Errorf("select %s: %w", folder, err)
	}
	return data.NumMessages, nil
}

func (c *Client) SearchAll() ([]imapv2.UID, error) {
	data, err := c.client.UIDSearch(&imapv2.SearchCriteria{}, nil).Wait()
	if err != nil {
		return nil, fmt.Errorf("search all: %w", err)
	}
	return data.AllUIDs(), nil
}

func (c *Client) Fetch(uid imapv2.UID) ([]byte, error) {
	uidSet := imapv2.UIDSetNum(uid)
	section := &imapv2.FetchItemBodySection{}
	fetchOpts := &imapv2.FetchOptions{
		UID:         true,
		BodySection: []*imapv2.FetchItemBodySection{section},
	}

	buffers, err := c.client.Fetch(uidSet, fetchOpts).Collect()
	if err != nil {
		return nil, fmt.Errorf("fetch %d: %w", uid, err)
	}
	if len(buffers) == 0 {
		return nil, fmt.Errorf("fetch %d: no data returned", uid)
	}

	body := buffers[0].FindBodySection(section)
	if body == nil {
		return nil, fmt.Errorf("fetch %d: missing body section", uid)
	}
	return append([]byte(nil), body...), nil
}

func (c *Client) MarkDeleted(uid imapv2.UID) error {
	uidSet := imapv2.UIDSetNum(uid)
	store := &imapv2.StoreFlags{
		Op:     imapv2.StoreFlagsAdd,
		Silent: true,
		Flags:  []imapv2.Flag{imapv2.FlagDeleted},
	}
	if err := c.client.Store(uidSet, store, nil).Close(); err != nil {
		return fmt.Errorf("mark deleted %d: %w", uid, err)
	}
	return nil
}

func (c *Client) Expunge() error {
	if err := c.client.Expunge().Close(); err != nil {
		return fmt.Errorf("expunge: %w", err)
	}
	return nil
}

func (c *Client) Logout() error {
	err := c.client.Logout().Wait()
	if closeErr := c.client.Close(); err == nil {
		err = closeErr
	}
	return err
}
