// Package validation turns raw webhook bodies into typed payloads, or into a
// list of field errors. Nothing loosely typed leaves this package.
package validation

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"

	"github.com/UDDITwork/shipsarthi-sub005/internal/payload"
)

// DefaultMaxImageBytes is the decoded size ceiling for embedded images.
const DefaultMaxImageBytes = 10 * 1024 * 1024

// Validator validates the four courier webhook shapes.
type Validator struct {
	maxImageBytes int
	validate      *validator.Validate
}

// New returns a Validator enforcing maxImageBytes on decoded images. A
// non-positive value selects DefaultMaxImageBytes.
func New(maxImageBytes int) *Validator {
	if maxImageBytes <= 0 {
		maxImageBytes = DefaultMaxImageBytes
	}
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		if name := fld.Tag.Get("field"); name != "" {
			return name
		}
		return fld.Name
	})
	return &Validator{maxImageBytes: maxImageBytes, validate: v}
}

// MaxImageBytes returns the configured decoded size ceiling.
func (v *Validator) MaxImageBytes() int {
	return v.maxImageBytes
}

type scanStatusRequired struct {
	AWB    string `field:"Shipment.AWB" validate:"required,max=64"`
	Status string `field:"Shipment.Status.Status" validate:"required,max=200"`
}

// ValidateScanStatus validates a scan-status body of the form
// {Shipment: {Status: {Status, StatusDateTime, ...}, AWB, ReferenceNo, ...}}.
func (v *Validator) ValidateScanStatus(body []byte) (payload.ScanStatus, error) {
	var errs payload.Errors

	root, ok := decodeObject(body, &errs)
	if !ok {
		return payload.ScanStatus{}, errs
	}
	shipment, ok := objectField(root, "Shipment", "Shipment", &errs)
	if !ok {
		return payload.ScanStatus{}, errs
	}
	status, ok := objectField(shipment, "Status", "Shipment.Status", &errs)
	if !ok {
		return payload.ScanStatus{}, errs
	}

	out := payload.ScanStatus{
		AWB:            stringField(shipment, "AWB", "Shipment.AWB", &errs),
		ReferenceNo:    stringField(shipment, "ReferenceNo", "Shipment.ReferenceNo", &errs),
		PickUpDate:     stringField(shipment, "PickUpDate", "Shipment.PickUpDate", &errs),
		NSLCode:        stringField(shipment, "NSLCode", "Shipment.NSLCode", &errs),
		SortCode:       stringField(shipment, "Sortcode", "Shipment.Sortcode", &errs),
		Status:         stringField(status, "Status", "Shipment.Status.Status", &errs),
		StatusDateTime: stringField(status, "StatusDateTime", "Shipment.Status.StatusDateTime", &errs),
		StatusType:     stringField(status, "StatusType", "Shipment.Status.StatusType", &errs),
		StatusLocation: stringField(status, "StatusLocation", "Shipment.Status.StatusLocation", &errs),
		Instructions:   stringField(status, "Instructions", "Shipment.Status.Instructions", &errs),
	}
	v.checkStruct(scanStatusRequired{AWB: out.AWB, Status: out.Status}, &errs)

	if err := errs.Err(); err != nil {
		return payload.ScanStatus{}, err
	}
	out.Raw = append([]byte(nil), body...)
	return out, nil
}

type imageShape struct {
	kind        payload.Kind
	awbField    string
	imageField  string
	orderField  string
	returnField string
	docField    string
}

var (
	epodShape   = imageShape{kind: payload.KindEPOD, awbField: "waybill", imageField: "EPOD", orderField: "orderID"}
	sorterShape = imageShape{kind: payload.KindSorterImage, awbField: "Waybill", imageField: "Weight_images", docField: "doc"}
	qcShape     = imageShape{kind: payload.KindQCImage, awbField: "waybillId", imageField: "Image", returnField: "returnId"}
)

type imageRequired struct {
	AWB   string `validate:"required,max=64"`
	Image string `validate:"required"`
}

// ValidateEPOD validates {waybill, EPOD, orderID}.
func (v *Validator) ValidateEPOD(body []byte) (payload.Image, error) {
	return v.validateImage(body, epodShape)
}

// ValidateSorterImage validates {Waybill, Weight_images, doc}.
func (v *Validator) ValidateSorterImage(body []byte) (payload.Image, error) {
	return v.validateImage(body, sorterShape)
}

// ValidateQCImage validates {waybillId, returnId, Image}.
func (v *Validator) ValidateQCImage(body []byte) (payload.Image, error) {
	return v.validateImage(body, qcShape)
}

func (v *Validator) validateImage(body []byte, shape imageShape) (payload.Image, error) {
	var errs payload.Errors

	root, ok := decodeObject(body, &errs)
	if !ok {
		return payload.Image{}, errs
	}

	out := payload.Image{
		ImageKind: shape.kind,
		AWB:       stringField(root, shape.awbField, shape.awbField, &errs),
	}
	if shape.orderField != "" {
		out.OrderID = stringField(root, shape.orderField, shape.orderField, &errs)
	}
	if shape.returnField != "" {
		out.ReturnID = stringField(root, shape.returnField, shape.returnField, &errs)
	}
	if shape.docField != "" {
		out.Doc = stringField(root, shape.docField, shape.docField, &errs)
	}
	encoded := stringField(root, shape.imageField, shape.imageField, &errs)

	required := imageRequired{AWB: out.AWB, Image: encoded}
	if err := v.validate.Struct(required); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				field := shape.awbField
				if fe.StructField() == "Image" {
					field = shape.imageField
				}
				errs.Add(field, describeTag(fe))
			}
		}
	}

	if encoded != "" {
		data, mime, err := DecodeImage(encoded, v.maxImageBytes)
		if err != nil {
			errs.Add(shape.imageField, err.Error())
		} else {
			out.Data = data
			out.MimeType = mime
		}
	}

	if err := errs.Err(); err != nil {
		return payload.Image{}, err
	}
	return out, nil
}

// DecodeImage decodes a base64 image, accepting both bare strings and
// data:<mime>;base64, URIs. The MIME type comes from the URI when present and
// is sniffed from the bytes otherwise.
func DecodeImage(encoded string, maxBytes int) ([]byte, string, error) {
	s := strings.TrimSpace(encoded)
	mime := ""
	if len(s) >= 5 && strings.EqualFold(s[:5], "data:") {
		comma := strings.IndexByte(s, ',')
		if comma < 0 {
			return nil, "", errors.New("malformed data URI")
		}
		header := s[5:comma]
		const marker = ";base64"
		if len(header) < len(marker) || !strings.EqualFold(header[len(header)-len(marker):], marker) {
			return nil, "", errors.New("data URI must be base64 encoded")
		}
		mime = strings.ToLower(strings.TrimSpace(header[:len(header)-len(marker)]))
		s = s[comma+1:]
	}
	s = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
	if s == "" {
		return nil, "", errors.New("image is empty")
	}

	// Reject before allocating when even the smallest possible decoding is too big.
	if len(s)/4*3-2 > maxBytes {
		return nil, "", fmt.Errorf("decoded image exceeds %d bytes", maxBytes)
	}

	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		data, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(s, "="))
		if err != nil {
			return nil, "", errors.New("image must be valid base64")
		}
	}
	if len(data) == 0 {
		return nil, "", errors.New("image is empty")
	}
	if len(data) > maxBytes {
		return nil, "", fmt.Errorf("decoded image exceeds %d bytes", maxBytes)
	}
	if mime == "" {
		mime = http.DetectContentType(data)
	}
	return data, mime, nil
}

func (v *Validator) checkStruct(s any, errs *payload.Errors) {
	err := v.validate.Struct(s)
	if err == nil {
		return
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		errs.Add("body", err.Error())
		return
	}
	for _, fe := range verrs {
		errs.Add(fe.Field(), describeTag(fe))
	}
}

func describeTag(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	}
	return "failed " + fe.Tag() + " check"
}

func decodeObject(body []byte, errs *payload.Errors) (map[string]any, bool) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		errs.Add("body", "is required")
		return nil, false
	}
	var raw any
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		errs.Add("body", "must be valid JSON")
		return nil, false
	}
	obj, ok := raw.(map[string]any)
	if !ok {
		errs.Add("body", "must be a JSON object")
		return nil, false
	}
	return obj, true
}

func objectField(m map[string]any, key, field string, errs *payload.Errors) (map[string]any, bool) {
	val, present := m[key]
	if !present || val == nil {
		errs.Add(field, "is required")
		return nil, false
	}
	obj, ok := val.(map[string]any)
	if !ok {
		errs.Add(field, "must be an object")
		return nil, false
	}
	return obj, true
}

// stringField returns the trimmed string at key. Absent and null values are
// empty; any other non-string value is a field error.
func stringField(m map[string]any, key, field string, errs *payload.Errors) string {
	val, present := m[key]
	if !present || val == nil {
		return ""
	}
	s, ok := val.(string)
	if !ok {
		errs.Add(field, "must be a string")
		return ""
	}
	return strings.TrimSpace(s)
}
