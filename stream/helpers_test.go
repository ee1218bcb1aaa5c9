package stream

import (
	"testing"

	"github.com/aws/aws-lambda-go/events"
)

func TestGetStringAttr_ExistingString(t *testing.T) {
	image := map[string]events.DynamoDBAttributeValue{
		"wall_id": events.NewStringAttribute("wall-1"),
	}

	result := getStringAttr(image, "wall_id")
	if result != "wall-1" {
		t.Errorf("expected 'wall-1', got %q", result)
	}
}

func TestGetStringAttr_MissingKey(t *testing.T) {
	image := map[string]events.DynamoDBAttributeValue{
		"other": events.NewStringAttribute("value"),
	}

	result := getStringAttr(image, "wall_id")
	if result != "" {
		t.Errorf("expected empty string for missing key, got %q", result)
	}
}

func TestGetStringAttr_NilImage(t *testing.T) {
	var image map[string]events.DynamoDBAttributeValue

	result := getStringAttr(image, "wall_id")
	if result != "" {
		t.Errorf("expected empty string for nil image, got %q", result)
	}
}

func TestGetStringAttr_NonStringAttribute(t *testing.T) {
	image := map[string]events.DynamoDBAttributeValue{
		"size":    events.NewNumberAttribute("42"),
		"premium": events.NewBooleanAttribute(true),
		"owner":   events.NewNullAttribute(),
	}

	for _, key := range []string{"size", "premium", "owner"} {
		if result := getStringAttr(image, key); result != "" {
			t.Errorf("%s: expected empty string for non-string attribute, got %q", key, result)
		}
	}
}

func TestGetStringAttr_UnicodeValue(t *testing.T) {
	image := map[string]events.DynamoDBAttributeValue{
		"id": events.NewStringAttribute("日本語-émoji-🎉"),
	}

	result := getStringAttr(image, "id")
	if result != "日本語-émoji-🎉" {
		t.Errorf("expected unicode value, got %q", result)
	}
}

func BenchmarkGetStringAttr(b *testing.B) {
	image := map[string]events.DynamoDBAttributeValue{
		"PartitionKey": events.NewStringAttribute("wall-1"),
		"RowKey":       events.NewStringAttribute("image-1"),
		"wall_id":      events.NewStringAttribute("wall-1"),
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		getStringAttr(image, "wall_id")
	}
}
