package models

import "testing"

func TestDocumentKindValid(t *testing.T) {
	for _, k := range []DocumentKind{DocumentDeliveryProof, DocumentSorterImage, DocumentQualityCheckImage, DocumentOther} {
		if !k.Valid() {
			t.Errorf("%q should be valid", k)
		}
	}
	for _, k := range []DocumentKind{"", "epod", "Delivery-Proof"} {
		if k.Valid() {
			t.Errorf("%q should be invalid", k)
		}
	}
}

func TestTableNames(t *testing.T) {
	tests := map[string]string{
		TrackingEvent{}.TableName():    "tracking_events",
		ShipmentDocument{}.TableName(): "shipment_documents",
	}
	for got, want := range tests {
		if got != want {
			t.Errorf("TableName() = %q, want %q", got, want)
		}
	}
}
