package docs

import (
	"net/url"
	"strconv"
)

// LocalFileURI returns the canonical URL of a document as the caller sees it.
// A positive version addresses that version's history directory instead.
func (s *Service) LocalFileURI(caller Caller, fileName string, version int) string {
	return s.fileURI(caller.ServerURL, caller.Identity, fileName, version)
}

// PublicFileURI is LocalFileURI addressed to the external editing service,
// which may reach this server through ExampleURL.
func (s *Service) PublicFileURI(caller Caller, fileName string, version int) string {
	return s.fileURI(s.documentServerURL(caller), caller.Identity, fileName, version)
}

// CallbackURL returns the URL the editing service reports document status to.
func (s *Service) CallbackURL(caller Caller, fileName string) string {
	q := url.Values{}
	q.Set("filename", fileName)
	q.Set("useraddress", caller.Identity)
	return s.documentServerURL(caller) + "/track?" + q.Encode()
}

func (s *Service) documentServerURL(caller Caller) string {
	if s.opts.ExampleURL != "" {
		return s.opts.ExampleURL
	}
	return caller.ServerURL
}

func (s *Service) fileURI(server, identity, fileName string, version int) string {
	u := server + "/"
	if s.opts.StorageFolder != "" {
		u += s.opts.StorageFolder + "/"
	}
	u += identity + "/" + url.PathEscape(fileName)
	if version > 0 {
		u += historySuffix + "/" + strconv.Itoa(version)
	}
	return u
}
