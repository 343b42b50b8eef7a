package probe

import (
	"crypto/md5"
	"encoding/hex"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Fingerprint hashes the structure of an HTML document with volatile
// elements removed. Script and style blocks change on almost every render
// (nonces, inlined state, cache busters), so they are stripped before
// hashing. The hash is only ever compared against a previous hash; it has
// no security role.
func Fingerprint(body string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		// Not parseable as HTML: hash the raw bytes instead.
		return hashString(body)
	}
	doc.Find("script, style").Remove()
	html, err := doc.Html()
	if err != nil {
		return hashString(body)
	}
	return hashString(html)
}

func hashString(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}
