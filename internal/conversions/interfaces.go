package conversions

import (
	"net/url"

	"code.superseriousbusiness.org/activity/streams/vocab"
)

type IriProperty interface {
	IsIRI() bool
	GetIRI() *url.URL
}

// TypeOrIri is satisfied by the properties and iterators that hold either a link or an embedded
// object.
type TypeOrIri interface {
	IriProperty
	GetType() vocab.Type
}

type WithPublicKeyProperty interface {
	GetW3IDSecurityV1PublicKey() vocab.W3IDSecurityV1PublicKeyProperty
	SetW3IDSecurityV1PublicKey(i vocab.W3IDSecurityV1PublicKeyProperty)
}

type withName interface {
	GetActivityStreamsName() vocab.ActivityStreamsNameProperty
}

type withTotalItems interface {
	GetActivityStreamsTotalItems() vocab.ActivityStreamsTotalItemsProperty
}

// Actor is implemented by every ActivityStreams actor type.
type Actor interface {
	vocab.Type
	withName
	GetActivityStreamsPreferredUsername() vocab.ActivityStreamsPreferredUsernameProperty
	GetActivityStreamsSummary() vocab.ActivityStreamsSummaryProperty
	GetActivityStreamsUrl() vocab.ActivityStreamsUrlProperty
	GetActivityStreamsPublished() vocab.ActivityStreamsPublishedProperty
	GetActivityStreamsFollowers() vocab.ActivityStreamsFollowersProperty
	GetActivityStreamsFollowing() vocab.ActivityStreamsFollowingProperty
	GetActivityStreamsOutbox() vocab.ActivityStreamsOutboxProperty
}

// Object is implemented by the object types a timeline entry can carry, such as Note or Article.
type Object interface {
	vocab.Type
	GetActivityStreamsContent() vocab.ActivityStreamsContentProperty
	GetActivityStreamsSummary() vocab.ActivityStreamsSummaryProperty
	GetActivityStreamsPublished() vocab.ActivityStreamsPublishedProperty
	GetActivityStreamsUrl() vocab.ActivityStreamsUrlProperty
	GetActivityStreamsAttributedTo() vocab.ActivityStreamsAttributedToProperty
	GetActivityStreamsTag() vocab.ActivityStreamsTagProperty
	GetActivityStreamsAttachment() vocab.ActivityStreamsAttachmentProperty
	GetActivityStreamsReplies() vocab.ActivityStreamsRepliesProperty
}

// Activity is implemented by Create and Announce.
type Activity interface {
	vocab.Type
	GetActivityStreamsActor() vocab.ActivityStreamsActorProperty
	GetActivityStreamsObject() vocab.ActivityStreamsObjectProperty
	GetActivityStreamsPublished() vocab.ActivityStreamsPublishedProperty
}

type withOrderedItems interface {
	GetActivityStreamsOrderedItems() vocab.ActivityStreamsOrderedItemsProperty
}

type withItems interface {
	GetActivityStreamsItems() vocab.ActivityStreamsItemsProperty
}

type withFirst interface {
	GetActivityStreamsFirst() vocab.ActivityStreamsFirstProperty
}

type withNext interface {
	GetActivityStreamsNext() vocab.ActivityStreamsNextProperty
}

type withPrev interface {
	GetActivityStreamsPrev() vocab.ActivityStreamsPrevProperty
}
