package models

// These structs define the inbound notification payloads that trigger an
// ingestion and the result handed back to the invoking environment.

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	cloudevents "github.com/cloudevents/sdk-go/v2"
)

// ErrEmptyLocation is returned when an event does not name a container and an object key.
var ErrEmptyLocation = errors.New("event does not name a storage location")

// StorageLocation identifies one stored object.
type StorageLocation struct {
	ContainerName string `json:"containerName"`
	ObjectKey     string `json:"objectKey"`
}

// ArrivalEvent is the notification that a new file exists and should be ingested.
type ArrivalEvent struct {
	StorageLocation StorageLocation `json:"storageLocation"`
}

// DocumentKey renders the globally unique key for the event's object.
func (e ArrivalEvent) DocumentKey() string {
	return DocumentKeyFor(e.StorageLocation.ContainerName, e.StorageLocation.ObjectKey)
}

// DocumentKeyFor joins a container and object key into a document key.
func DocumentKeyFor(container, objectKey string) string {
	return container + "/" + objectKey
}

// GCSEvent is the payload of a GCS object finalize notification.
type GCSEvent struct {
	Bucket string `json:"bucket"`
	Name   string `json:"name"`
}

// S3EventNotification is the payload S3 publishes for object-created events.
type S3EventNotification struct {
	Records []S3EventRecord `json:"Records"`
}

// S3EventRecord is one record of an S3 event notification.
type S3EventRecord struct {
	EventName string `json:"eventName"`
	S3        struct {
		Bucket struct {
			Name string `json:"name"`
		} `json:"bucket"`
		Object struct {
			Key  string `json:"key"`
			Size int64  `json:"size"`
		} `json:"object"`
	} `json:"s3"`
}

// IngestResult is the outcome of one ingestion call.
type IngestResult struct {
	DocumentKey  string `json:"documentKey"`
	Status       Status `json:"status"`
	SectionCount int    `json:"sectionCount"`
	AttemptID    string `json:"attemptId,omitempty"`
	Skipped      bool   `json:"skipped"`
}

// FromGCSEvent converts a GCS notification into an ArrivalEvent.
func FromGCSEvent(e GCSEvent) ArrivalEvent {
	return ArrivalEvent{StorageLocation: StorageLocation{ContainerName: e.Bucket, ObjectKey: e.Name}}
}

// FromS3Event converts the first record of an S3 notification into an ArrivalEvent.
// S3 delivers object keys form-encoded, so the key is unescaped.
func FromS3Event(n S3EventNotification) (ArrivalEvent, error) {
	if len(n.Records) == 0 {
		return ArrivalEvent{}, fmt.Errorf("s3 notification has no records: %w", ErrEmptyLocation)
	}
	rec := n.Records[0]
	key, err := url.QueryUnescape(rec.S3.Object.Key)
	if err != nil {
		return ArrivalEvent{}, fmt.Errorf("unescape s3 object key %q: %w", rec.S3.Object.Key, err)
	}
	return ArrivalEvent{StorageLocation: StorageLocation{ContainerName: rec.S3.Bucket.Name, ObjectKey: key}}, nil
}

// DecodeArrivalEvent accepts any of the supported inbound shapes: a native
// ArrivalEvent, a GCS notification, an S3 notification, or a CloudEvents JSON
// envelope wrapping one of them.
func DecodeArrivalEvent(data []byte) (ArrivalEvent, error) {
	var shape struct {
		SpecVersion     string           `json:"specversion"`
		StorageLocation *StorageLocation `json:"storageLocation"`
		Bucket          string           `json:"bucket"`
		Name            string           `json:"name"`
		Records         json.RawMessage  `json:"Records"`
	}
	if err := json.Unmarshal(data, &shape); err != nil {
		return ArrivalEvent{}, fmt.Errorf("json.Unmarshal: %w", err)
	}

	var ev ArrivalEvent
	switch {
	case shape.SpecVersion != "":
		ce := cloudevents.NewEvent()
		if err := json.Unmarshal(data, &ce); err != nil {
			return ArrivalEvent{}, fmt.Errorf("decode cloudevent: %w", err)
		}
		return DecodeArrivalEvent(ce.Data())
	case shape.StorageLocation != nil:
		ev = ArrivalEvent{StorageLocation: *shape.StorageLocation}
	case len(shape.Records) > 0:
		var n S3EventNotification
		if err := json.Unmarshal(data, &n); err != nil {
			return ArrivalEvent{}, fmt.Errorf("decode s3 notification: %w", err)
		}
		var err error
		if ev, err = FromS3Event(n); err != nil {
			return ArrivalEvent{}, err
		}
	default:
		ev = FromGCSEvent(GCSEvent{Bucket: shape.Bucket, Name: shape.Name})
	}

	if strings.TrimSpace(ev.StorageLocation.ContainerName) == "" || strings.TrimSpace(ev.StorageLocation.ObjectKey) == "" {
		return ArrivalEvent{}, ErrEmptyLocation
	}
	return ev, nil
}
