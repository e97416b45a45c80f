package conversions

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"code.superseriousbusiness.org/activity/streams"
	"code.superseriousbusiness.org/activity/streams/vocab"
	"github.com/cespare/xxhash/v2"
	"github.com/sidereusnuntius/fedicache/internal/domain"
)

var (
	ErrMissingProperty        = errors.New("missing property")
	ErrUnprocessablePropValue = errors.New("unprocessable property value")
)

var mainKey, _ = url.Parse("#main-key")

// ServiceActor builds the actor document of the harvester itself. Its key is the one outgoing
// requests are signed with.
func ServiceActor(id *url.URL, username, publicKeyPem string) vocab.Type {
	a := streams.NewActivityStreamsService()

	idProp := streams.NewJSONLDIdProperty()
	idProp.SetIRI(id)
	a.SetJSONLDId(idProp)

	name := streams.NewActivityStreamsPreferredUsernameProperty()
	name.SetXMLSchemaString(username)
	a.SetActivityStreamsPreferredUsername(name)

	summary := streams.NewActivityStreamsSummaryProperty()
	summary.AppendXMLSchemaString("Read-only harvester.")
	a.SetActivityStreamsSummary(summary)

	inbox := streams.NewActivityStreamsInboxProperty()
	inbox.SetIRI(id.JoinPath("inbox"))
	a.SetActivityStreamsInbox(inbox)

	outbox := streams.NewActivityStreamsOutboxProperty()
	outbox.SetIRI(id.JoinPath("outbox"))
	a.SetActivityStreamsOutbox(outbox)

	a.SetW3IDSecurityV1PublicKey(PublicKeyProp(id, publicKeyPem))
	return a
}

// KeyID returns the id under which the actor's public key is published.
func KeyID(actor *url.URL) *url.URL {
	return actor.ResolveReference(mainKey)
}

func PublicKeyProp(owner *url.URL, publicKeyPem string) vocab.W3IDSecurityV1PublicKeyProperty {
	keyProp := streams.NewW3IDSecurityV1PublicKeyProperty()
	key := streams.NewW3IDSecurityV1PublicKey()

	ownerProp := streams.NewW3IDSecurityV1OwnerProperty()
	ownerProp.SetIRI(owner)

	keyURIProp := streams.NewJSONLDIdProperty()
	keyURIProp.SetIRI(KeyID(owner))

	pemProp := streams.NewW3IDSecurityV1PublicKeyPemProperty()
	pemProp.Set(publicKeyPem)

	key.SetJSONLDId(keyURIProp)
	key.SetW3IDSecurityV1PublicKeyPem(pemProp)
	key.SetW3IDSecurityV1Owner(ownerProp)

	keyProp.AppendW3IDSecurityV1PublicKey(key)
	return keyProp
}

// ActorToProfile converts a remote actor. The counters are left at zero, since they are only
// available from the actor's collections.
func ActorToProfile(t vocab.Type) (p domain.Profile, err error) {
	a, ok := t.(Actor)
	if !ok {
		err = fmt.Errorf("%w: %s is not an actor", errors.ErrUnsupported, t.GetTypeName())
		return
	}

	idProp := a.GetJSONLDId()
	if idProp == nil || idProp.Get() == nil {
		err = fmt.Errorf("%w: id", ErrMissingProperty)
		return
	}
	id := idProp.Get()
	p.ID = id.String()

	if username := a.GetActivityStreamsPreferredUsername(); username != nil {
		p.Username = username.GetXMLSchemaString()
	}
	if p.Username == "" {
		err = fmt.Errorf("%w: preferredUsername", ErrMissingProperty)
		return
	}
	p.Acct = p.Username + "@" + strings.ToLower(id.Host)

	p.DisplayName = firstName(a)
	if summary := a.GetActivityStreamsSummary(); summary != nil && summary.Len() != 0 {
		p.Note = summary.Begin().GetXMLSchemaString()
	}
	if u := firstURL(a.GetActivityStreamsUrl()); u != nil {
		p.URL = u.String()
	} else {
		p.URL = p.ID
	}
	if published := a.GetActivityStreamsPublished(); published != nil {
		p.CreatedAt = published.Get()
	}
	p.Bot = t.GetTypeName() == streams.ActivityStreamsServiceName || t.GetTypeName() == streams.ActivityStreamsApplicationName

	return
}

// ActorCollections returns the following, followers and outbox collections of an actor. Any of them
// may be nil.
func ActorCollections(t vocab.Type) (following, followers, outbox *url.URL) {
	a, ok := t.(Actor)
	if !ok {
		return
	}
	if p := a.GetActivityStreamsFollowing(); p != nil && p.IsIRI() {
		following = p.GetIRI()
	}
	if p := a.GetActivityStreamsFollowers(); p != nil && p.IsIRI() {
		followers = p.GetIRI()
	}
	if p := a.GetActivityStreamsOutbox(); p != nil && p.IsIRI() {
		outbox = p.GetIRI()
	}
	return
}

// AcctFromIRI guesses the account an actor IRI belongs to from its last path segment, which is how
// most servers lay out their actor ids ("/users/alice", "/@alice", "/u/alice").
func AcctFromIRI(iri *url.URL) string {
	segments := strings.Split(strings.Trim(iri.Path, "/"), "/")
	user := strings.TrimPrefix(segments[len(segments)-1], "@")
	if user == "" {
		return ""
	}
	return user + "@" + strings.ToLower(iri.Host)
}

// StatusID maps a status IRI to an id in the time ordered id space. Servers which expose their
// numeric ids in the IRI, as Mastodon does, keep them; for the rest an id is derived from the
// publication time, with the low bits taken from the IRI. Statuses without a usable publication
// time sort before all others.
func StatusID(iri *url.URL, published time.Time) int64 {
	segments := strings.Split(strings.Trim(iri.Path, "/"), "/")
	for i := len(segments) - 1; i >= 0 && i >= len(segments)-2; i-- {
		if id, err := strconv.ParseInt(segments[i], 10, 64); err == nil && id > 1<<16 {
			return id
		}
	}

	ms := published.UnixMilli()
	if published.IsZero() || ms < 0 {
		ms = 0
	}
	return ms<<16 | int64(xxhash.Sum64String(iri.String())&0xffff)
}

func firstName(t withName) string {
	if name := t.GetActivityStreamsName(); name != nil && name.Len() != 0 {
		return name.Begin().GetXMLSchemaString()
	}
	return ""
}

func firstURL(prop vocab.ActivityStreamsUrlProperty) *url.URL {
	if prop == nil {
		return nil
	}
	for it := prop.Begin(); it != prop.End(); it = it.Next() {
		if it.IsIRI() {
			return it.GetIRI()
		}
		if it.IsActivityStreamsLink() {
			if href := it.GetActivityStreamsLink().GetActivityStreamsHref(); href != nil {
				return href.Get()
			}
		}
	}
	return nil
}

// IriOf returns the IRI held by p, or the id of the object embedded in it.
func IriOf(p TypeOrIri) *url.URL {
	if p.IsIRI() {
		return p.GetIRI()
	}
	if t := p.GetType(); t != nil && t.GetJSONLDId() != nil {
		return t.GetJSONLDId().Get()
	}
	return nil
}

// TotalItems returns the totalItems of a collection, or -1 when it is not given.
func TotalItems(t vocab.Type) int {
	c, ok := t.(withTotalItems)
	if !ok || c.GetActivityStreamsTotalItems() == nil {
		return -1
	}
	return c.GetActivityStreamsTotalItems().Get()
}
