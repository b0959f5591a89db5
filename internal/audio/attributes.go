package audio

import (
	"slices"
	"strconv"
	"strings"
)

// ContentType describes what the audio data itself is, independent of why it
// is being played.
type ContentType int

const (
	ContentTypeUnknown      ContentType = 0
	ContentTypeSpeech       ContentType = 1
	ContentTypeMusic        ContentType = 2
	ContentTypeMovie        ContentType = 3
	ContentTypeSonification ContentType = 4
)

// Attributes is the routing key attached to every stream: a usage plus
// optional qualifiers. Context lookup matches on the whole value, so two
// streams with the same usage but different tags can land in different
// contexts under core routing.
type Attributes struct {
	Usage       Usage       `json:"usage"`
	ContentType ContentType `json:"content_type,omitempty"`
	Source      int         `json:"source,omitempty"`
	Flags       int         `json:"flags,omitempty"`
	Tags        []string    `json:"tags,omitempty"`
}

// UsageAttributes builds attributes carrying only a usage, the common case
// for focus holders and context tables.
func UsageAttributes(u Usage) Attributes {
	return Attributes{Usage: u}
}

// Equal reports full attribute equality, source and tags included.
func (a Attributes) Equal(o Attributes) bool {
	return a.Usage == o.Usage &&
		a.ContentType == o.ContentType &&
		a.Source == o.Source &&
		a.Flags == o.Flags &&
		slices.Equal(a.Tags, o.Tags)
}

func (a Attributes) String() string {
	var b strings.Builder
	b.WriteString(a.Usage.String())
	if a.ContentType != ContentTypeUnknown {
		b.WriteString("/content:")
		b.WriteString(contentTypeNames[a.ContentType])
	}
	if a.Source != 0 {
		b.WriteString("/source:")
		b.WriteString(strconv.Itoa(a.Source))
	}
	for _, t := range a.Tags {
		b.WriteString("/tag:")
		b.WriteString(t)
	}
	return b.String()
}

var contentTypeNames = map[ContentType]string{
	ContentTypeUnknown:      "unknown",
	ContentTypeSpeech:       "speech",
	ContentTypeMusic:        "music",
	ContentTypeMovie:        "movie",
	ContentTypeSonification: "sonification",
}
