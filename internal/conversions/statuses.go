package conversions

import (
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strings"

	"code.superseriousbusiness.org/activity/streams"
	"code.superseriousbusiness.org/activity/streams/vocab"
	"github.com/sidereusnuntius/fedicache/internal/domain"
)

// Entry is a converted outbox item. When an announced post is not embedded in the activity, Status
// holds the reblog without its Reblog field and Reblogged is the IRI of the post, which has to be
// dereferenced separately.
type Entry struct {
	Status    domain.RemoteStatus
	Reblogged *url.URL
}

// ConvertActivity converts a Create or an Announce found in an outbox.
func ConvertActivity(t vocab.Type) (e Entry, err error) {
	a, ok := t.(Activity)
	if !ok {
		err = fmt.Errorf("%w: %s", errors.ErrUnsupported, t.GetTypeName())
		return
	}

	object := a.GetActivityStreamsObject()
	if object == nil || object.Len() == 0 {
		err = fmt.Errorf("%w: object", ErrMissingProperty)
		return
	}

	switch t.GetTypeName() {
	case streams.ActivityStreamsCreateName:
		embedded := object.Begin().GetType()
		if embedded == nil {
			err = fmt.Errorf("%w: created object is not embedded", ErrUnprocessablePropValue)
			return
		}
		e.Status.Status, err = ConvertObject(embedded)
	case streams.ActivityStreamsAnnounceName:
		e, err = convertAnnounce(a, object.Begin())
	default:
		err = fmt.Errorf("%w: %s", errors.ErrUnsupported, t.GetTypeName())
	}
	return
}

func convertAnnounce(a Activity, object vocab.ActivityStreamsObjectPropertyIterator) (e Entry, err error) {
	idProp := a.GetJSONLDId()
	if idProp == nil || idProp.Get() == nil {
		err = fmt.Errorf("%w: id", ErrMissingProperty)
		return
	}
	id := idProp.Get()

	s := domain.Status{URL: id.String()}
	if published := a.GetActivityStreamsPublished(); published != nil {
		s.CreatedAt = published.Get()
	}
	if actor := a.GetActivityStreamsActor(); actor != nil && actor.Len() != 0 {
		if iri := IriOf(actor.Begin()); iri != nil {
			s.Account = AcctFromIRI(iri)
		}
	}
	s.ID = StatusID(id, s.CreatedAt)
	e.Status.Status = s

	if embedded := object.GetType(); embedded != nil {
		var reblogged domain.Status
		if reblogged, err = ConvertObject(embedded); err != nil {
			return
		}
		e.Status.Reblog = &reblogged
		return
	}
	if !object.IsIRI() {
		err = fmt.Errorf("%w: announced object", ErrUnprocessablePropValue)
		return
	}
	e.Reblogged = object.GetIRI()
	return
}

// ConvertObject converts a post, such as a Note, into a status.
func ConvertObject(t vocab.Type) (s domain.Status, err error) {
	o, ok := t.(Object)
	if !ok {
		err = fmt.Errorf("%w: %s", errors.ErrUnsupported, t.GetTypeName())
		return
	}

	idProp := o.GetJSONLDId()
	if idProp == nil || idProp.Get() == nil {
		err = fmt.Errorf("%w: id", ErrMissingProperty)
		return
	}
	id := idProp.Get()

	if published := o.GetActivityStreamsPublished(); published != nil {
		s.CreatedAt = published.Get()
	}
	s.ID = StatusID(id, s.CreatedAt)

	if attributedTo := o.GetActivityStreamsAttributedTo(); attributedTo != nil && attributedTo.Len() != 0 {
		if iri := IriOf(attributedTo.Begin()); iri != nil {
			s.Account = AcctFromIRI(iri)
		}
	}

	if u := firstURL(o.GetActivityStreamsUrl()); u != nil {
		s.URL = u.String()
	} else {
		s.URL = id.String()
	}

	if summary := o.GetActivityStreamsSummary(); summary != nil && summary.Len() != 0 {
		s.SpoilerText = summary.Begin().GetXMLSchemaString()
	}

	s.Content, s.Language = content(o.GetActivityStreamsContent())
	s.Tags, s.Mentions = tags(o.GetActivityStreamsTag())

	if attachments := o.GetActivityStreamsAttachment(); attachments != nil {
		for it := attachments.Begin(); it != attachments.End(); it = it.Next() {
			if n, ok := it.GetType().(withName); ok {
				if desc := firstName(n); desc != "" {
					s.MediaDescriptions = append(s.MediaDescriptions, desc)
				}
			}
		}
	}

	if replies := o.GetActivityStreamsReplies(); replies != nil && replies.GetType() != nil {
		s.RepliesCount = max(TotalItems(replies.GetType()), 0)
	}

	return
}

func content(prop vocab.ActivityStreamsContentProperty) (text, language string) {
	if prop == nil {
		return
	}
	for it := prop.Begin(); it != prop.End(); it = it.Next() {
		switch {
		case it.IsXMLSchemaString():
			if text == "" {
				text = it.GetXMLSchemaString()
			}
		case it.IsRDFLangString():
			m := it.GetRDFLangString()
			langs := make([]string, 0, len(m))
			for l := range m {
				langs = append(langs, l)
			}
			if len(langs) == 0 {
				continue
			}
			slices.Sort(langs)
			language = langs[0]
			if text == "" {
				text = m[language]
			}
		}
	}
	return
}

func tags(prop vocab.ActivityStreamsTagProperty) (hashtags, mentions []string) {
	if prop == nil {
		return
	}
	for it := prop.Begin(); it != prop.End(); it = it.Next() {
		t := it.GetType()
		if t == nil {
			continue
		}
		n, ok := t.(withName)
		if !ok {
			continue
		}
		name := firstName(n)

		switch t.GetTypeName() {
		case "Hashtag":
			if name = strings.TrimPrefix(name, "#"); name != "" {
				hashtags = append(hashtags, strings.ToLower(name))
			}
		case streams.ActivityStreamsMentionName:
			acct := strings.TrimPrefix(name, "@")
			if !strings.Contains(acct, "@") {
				if m, ok := t.(vocab.ActivityStreamsMention); ok && m.GetActivityStreamsHref() != nil {
					acct = AcctFromIRI(m.GetActivityStreamsHref().Get())
				}
			}
			if acct != "" {
				mentions = append(mentions, acct)
			}
		}
	}
	return
}
