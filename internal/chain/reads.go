package chain

import (
	"context"
	"encoding/base64"
	"log"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/tidwall/gjson"

	"gallery-service/internal/models"
)

const (
	dynamicFieldsPageSize = 50
	multiGetBatchSize     = 50
	// devInspect needs a sender; nothing is signed or executed.
	inspectSender = "0x0"
)

// GetSceneConfigJSON reads the scene config dynamic field attached to the kiosk.
func (c *Client) GetSceneConfigJSON(ctx context.Context, kioskID string) (string, bool, error) {
	name := map[string]any{
		"type":  Target(c.packageID, GalleryModule, SceneConfigKeyStruct),
		"value": map[string]any{"dummy_field": false},
	}
	res, err := c.call(ctx, "suix_getDynamicFieldObject", kioskID, name)
	if err != nil {
		return "", false, err
	}
	if e := res.Get("error"); e.Exists() {
		switch e.Get("code").String() {
		case "dynamicFieldNotFound", "notExists", "deleted":
			return "", false, nil
		}
		return "", false, errors.Errorf("failed to read scene config: %s", e.Raw)
	}
	value := res.Get("data.content.fields.value")
	if !value.Exists() {
		return "", false, nil
	}
	if value.Type != gjson.String {
		log.Printf("Scene config field is not a string: kiosk=%s, type=%s", kioskID, value.Type)
		return "", false, nil
	}
	return value.String(), true, nil
}

// GetKioskItems lists the kiosk's items with their display and content metadata. Listed items
// carry their price.
func (c *Client) GetKioskItems(ctx context.Context, kioskID string) ([]models.KioskItem, error) {
	var itemIDs []string
	listings := make(map[string]string) // item id -> listing field object id

	var cursor any
	for {
		res, err := c.call(ctx, "suix_getDynamicFields", kioskID, cursor, dynamicFieldsPageSize)
		if err != nil {
			return nil, errors.Wrap(err, "failed to list kiosk fields")
		}
		for _, f := range res.Get("data").Array() {
			nameType := f.Get("name.type").String()
			id := f.Get("name.value.id").String()
			switch {
			case strings.HasSuffix(nameType, "::kiosk::Item"):
				itemIDs = append(itemIDs, id)
			case strings.HasSuffix(nameType, "::kiosk::Listing"):
				listings[id] = f.Get("objectId").String()
			}
		}
		if !res.Get("hasNextPage").Bool() {
			break
		}
		next := res.Get("nextCursor").String()
		if next == "" {
			break
		}
		cursor = next
	}

	objects, err := c.multiGet(ctx, itemIDs, map[string]any{"showType": true, "showContent": true, "showDisplay": true})
	if err != nil {
		return nil, errors.Wrap(err, "failed to fetch kiosk items")
	}
	prices, err := c.listingPrices(ctx, listings)
	if err != nil {
		return nil, err
	}

	items := make([]models.KioskItem, 0, len(itemIDs))
	for _, id := range itemIDs {
		obj, ok := objects[id]
		if !ok {
			log.Printf("Kiosk item missing from object query: kiosk=%s, item=%s", kioskID, id)
			continue
		}
		item := models.KioskItem{
			ObjectID: id,
			Type:     obj.Get("type").String(),
			Display:  asMap(obj.Get("display.data")),
			Content:  asMap(obj.Get("content.fields")),
		}
		if _, listed := listings[id]; listed {
			item.IsListed = true
			if p, ok := prices[id]; ok {
				price := p
				item.Price = &price
			}
		}
		items = append(items, item)
	}
	return items, nil
}

func (c *Client) listingPrices(ctx context.Context, listings map[string]string) (map[string]uint64, error) {
	prices := make(map[string]uint64, len(listings))
	if len(listings) == 0 {
		return prices, nil
	}
	fieldIDs := make([]string, 0, len(listings))
	itemByField := make(map[string]string, len(listings))
	for itemID, fieldID := range listings {
		fieldIDs = append(fieldIDs, fieldID)
		itemByField[fieldID] = itemID
	}
	fields, err := c.multiGet(ctx, fieldIDs, map[string]any{"showContent": true})
	if err != nil {
		return nil, errors.Wrap(err, "failed to fetch listing prices")
	}
	for fieldID, f := range fields {
		raw := f.Get("content.fields.value").String()
		price, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			log.Printf("Invalid listing price: field=%s, value=%q", fieldID, raw)
			continue
		}
		prices[itemByField[fieldID]] = price
	}
	return prices, nil
}

// multiGet fetches objects in batches and returns their "data" members keyed by object id.
func (c *Client) multiGet(ctx context.Context, ids []string, options map[string]any) (map[string]gjson.Result, error) {
	out := make(map[string]gjson.Result, len(ids))
	for start := 0; start < len(ids); start += multiGetBatchSize {
		end := min(start+multiGetBatchSize, len(ids))
		res, err := c.call(ctx, "sui_multiGetObjects", ids[start:end], options)
		if err != nil {
			return nil, err
		}
		for _, entry := range res.Array() {
			data := entry.Get("data")
			if !data.Exists() {
				continue
			}
			out[data.Get("objectId").String()] = data
		}
	}
	return out, nil
}

// DevInspectObjectProperties dry-runs get_object_properties(kiosk, object_id) and returns the
// BCS bytes of its first return value.
func (c *Client) DevInspectObjectProperties(ctx context.Context, kioskID, objectID string) ([]byte, error) {
	version, err := c.initialSharedVersion(ctx, kioskID)
	if err != nil {
		return nil, err
	}
	kind, err := EncodeInspectCall(c.packageID, GalleryModule, FnGetObjectProperties, kioskID, version, objectID)
	if err != nil {
		return nil, err
	}
	res, err := c.call(ctx, "sui_devInspectTransactionBlock", inspectSender, base64.StdEncoding.EncodeToString(kind), nil, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to inspect object properties")
	}
	if msg := res.Get("error").String(); msg != "" {
		return nil, errors.Errorf("object properties inspection aborted: %s", msg)
	}
	values := res.Get("results.0.returnValues.0.0")
	if !values.IsArray() {
		return nil, errors.Errorf("object properties inspection returned no value")
	}
	arr := values.Array()
	out := make([]byte, len(arr))
	for i, v := range arr {
		n := v.Int()
		if n < 0 || n > 255 {
			return nil, errors.Errorf("object properties return value has invalid byte %d", n)
		}
		out[i] = byte(n)
	}
	return out, nil
}

func (c *Client) initialSharedVersion(ctx context.Context, objectID string) (uint64, error) {
	res, err := c.call(ctx, "sui_getObject", objectID, map[string]any{"showOwner": true})
	if err != nil {
		return 0, errors.Wrap(err, "failed to read kiosk object")
	}
	if res.Get("error").Exists() {
		return 0, errors.Wrapf(ErrNotFound, "kiosk %s", objectID)
	}
	v := res.Get("data.owner.Shared.initial_shared_version")
	if !v.Exists() {
		return 0, errors.Errorf("kiosk %s is not a shared object", objectID)
	}
	return v.Uint(), nil
}

func asMap(r gjson.Result) map[string]any {
	if !r.IsObject() {
		return nil
	}
	m, _ := r.Value().(map[string]any)
	return m
}
