package notify

import (
	"encoding/json"
	"os"
	"regexp"
	"strings"
)

// Sources whose notifications get a dial/reply callback URL attached.
var callbackSources = map[string]string{
	"phone":    "tel:",
	"facetime": "tel:",
	"messages": "sms:",
}

// Matches UK numbers (+44 or leading 0), generic international numbers,
// and bare 10-11 digit runs.
var phonePattern = regexp.MustCompile(
	`(?:\+44\s?|0)(?:\d\s?){9,10}|\+\d{1,3}\s?\d{6,14}|\b\d{10,11}\b`,
)

var spaceRe = regexp.MustCompile(`\s`)

// Contacts maps contact display names to phone numbers.
type Contacts map[string]string

// LoadContacts reads a name->number JSON map. A missing path yields an
// empty map, not an error; the action URL feature simply degrades.
func LoadContacts(path string) (Contacts, error) {
	if strings.TrimSpace(path) == "" {
		return Contacts{}, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Contacts{}, nil
		}
		return nil, err
	}
	var c Contacts
	if err := json.Unmarshal(b, &c); err != nil {
		return nil, err
	}
	return c, nil
}

// Lookup finds a number by contact name: exact match first, then a partial
// match where the contact name contains the search name. Case-insensitive.
func (c Contacts) Lookup(name string) string {
	if name == "" || len(c) == 0 {
		return ""
	}
	lower := strings.ToLower(name)
	for contact, number := range c {
		if strings.ToLower(contact) == lower {
			return number
		}
	}
	for contact, number := range c {
		if strings.Contains(strings.ToLower(contact), lower) {
			return number
		}
	}
	return ""
}

// ExtractPhone returns the first phone number found in text, normalized
// for a tel:/sms: URL (spaces removed, UK numbers rewritten to +44).
func ExtractPhone(text string) string {
	if text == "" {
		return ""
	}
	m := phonePattern.FindString(text)
	if m == "" {
		return ""
	}
	number := spaceRe.ReplaceAllString(m, "")
	switch {
	case strings.HasPrefix(number, "0") && len(number) == 11:
		number = "+44" + number[1:]
	case !strings.HasPrefix(number, "+"):
		number = "+44" + number
	}
	return number
}

// ApplyActionURL derives and sets the tel:/sms: callback URL for call and
// message sources. Number extraction from the text wins over contact lookup.
func (n *Notification) ApplyActionURL(contacts Contacts) {
	scheme, ok := callbackSources[n.Source]
	if !ok {
		return
	}
	number := ExtractPhone(n.Title)
	if number == "" {
		number = ExtractPhone(n.Body)
	}
	if number == "" {
		number = contacts.Lookup(n.Title)
	}
	if number != "" {
		n.ActionURL = scheme + number
	}
}
