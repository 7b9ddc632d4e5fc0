//go:build integration

package integration

import (
	"net/http"
	"testing"
	"time"
)

// Seeded base prices are foreign; with the stub rate 90 and the fixed
// foreign margin 2, "Green Tea 250g" (base 3/2.5) must list at
// (3+2)*90 = 450.00 normal and (2.5+2)*90 = 405.00 member.
func TestListProducts_ResolvedPrices(t *testing.T) {
	resp := doGet(t, "/api/v1/products")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	list := decodeJSON[productListJSON](t, resp)
	if !list.PricesAvailable {
		t.Fatal("expected prices_available=true")
	}

	var tea *productJSON
	for i := range list.Products {
		if list.Products[i].ID == "tea-green-250" {
			tea = &list.Products[i]
		}
	}
	if tea == nil {
		t.Fatal("seeded product tea-green-250 not listed")
	}
	if tea.Prices == nil {
		t.Fatal("expected resolved prices on tea-green-250")
	}
	if tea.Prices.Normal != "450.00" {
		t.Errorf("normal price: got %s, want 450.00", tea.Prices.Normal)
	}
	if tea.Prices.Member != "405.00" {
		t.Errorf("member price: got %s, want 405.00", tea.Prices.Member)
	}
}

func TestDiscount_AppliedToListing(t *testing.T) {
	resp := doPost(t, "/api/v1/settings/discounts", map[string]string{
		"target":     "tea-black-250",
		"percentage": "10",
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("add discount: expected 201, got %d", resp.StatusCode)
	}
	defer func() {
		resp := do(t, http.MethodDelete, "/api/v1/settings/discounts/tea-black-250", nil)
		resp.Body.Close()
	}()

	resp = doGet(t, "/api/v1/products")
	defer resp.Body.Close()
	list := decodeJSON[productListJSON](t, resp)

	for _, p := range list.Products {
		if p.ID != "tea-black-250" {
			continue
		}
		if p.Prices == nil || !p.Prices.Discounted {
			t.Fatal("expected tea-black-250 to carry a discount")
		}
		// (2.8+2)*90 = 432, minus 10% = 388.80.
		if p.Prices.Normal != "388.80" {
			t.Errorf("discounted price: got %s, want 388.80", p.Prices.Normal)
		}
		if p.Prices.OriginalNormal != "432.00" {
			t.Errorf("original price: got %s, want 432.00", p.Prices.OriginalNormal)
		}
		return
	}
	t.Fatal("tea-black-250 not listed")
}

func TestDiscount_InvalidPercentage(t *testing.T) {
	resp := doPost(t, "/api/v1/settings/discounts", map[string]string{
		"target":     "ALL",
		"percentage": "150",
	})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestProduct_CreateAndDelete(t *testing.T) {
	resp := doPost(t, "/api/v1/products", map[string]any{
		"category_id":       "tea",
		"name":              "White Tea 100g",
		"base_normal_price": "6",
		"base_member_price": "5.5",
		"points_per_unit":   "2",
	})
	if resp.StatusCode != http.StatusCreated {
		resp.Body.Close()
		t.Fatalf("create: expected 201, got %d", resp.StatusCode)
	}
	created := decodeJSON[productJSON](t, resp)
	resp.Body.Close()

	resp = do(t, http.MethodDelete, "/api/v1/products/"+created.ID, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete: expected 204, got %d", resp.StatusCode)
	}
}

// Deleting a product referenced by an order must warn with 409; the
// delete is repeated with force=true to go through.
func TestProduct_DeleteReferencedByOrder(t *testing.T) {
	resp := doPost(t, "/api/v1/products", map[string]any{
		"category_id":       "gifts",
		"name":              "Limited Gift Set",
		"base_normal_price": "20",
		"base_member_price": "18",
	})
	created := decodeJSON[productJSON](t, resp)
	resp.Body.Close()

	sel := submitSelection(t, "Delete Guard", "+10000000001", created.ID, 1)
	o := convertSelection(t, sel.ID, nil)
	_ = o

	resp = do(t, http.MethodDelete, "/api/v1/products/"+created.ID, nil)
	body := decodeJSON[errorResponse](t, resp)
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("delete referenced: expected 409, got %d (%s)", resp.StatusCode, body.Message)
	}

	resp = do(t, http.MethodDelete, "/api/v1/products/"+created.ID+"?force=true", nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("force delete: expected 204, got %d", resp.StatusCode)
	}
}

func TestRateEndpoint(t *testing.T) {
	resp := doGet(t, "/api/v1/rate")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	body := decodeJSON[struct {
		Rate      string    `json:"rate"`
		FetchedAt time.Time `json:"fetched_at"`
	}](t, resp)
	if body.Rate != "90" {
		t.Errorf("rate: got %s, want 90", body.Rate)
	}
	if body.FetchedAt.IsZero() {
		t.Error("fetched_at not set")
	}
}
