package ident

import "testing"

func TestServiceIDDeterministic(t *testing.T) {
	first, err := ServiceID("https://example.com/resource")
	if err != nil {
		t.Fatalf("derive service id: %v", err)
	}
	second, err := ServiceID("https://example.com/resource")
	if err != nil {
		t.Fatalf("derive service id: %v", err)
	}
	if first != second {
		t.Fatalf("expected deterministic ids, got %q and %q", first, second)
	}
	if !IsService(first) {
		t.Fatalf("expected service prefix, got %q", first)
	}
}

func TestServiceIDDiffersByURL(t *testing.T) {
	a, err := ServiceID("https://example.com/a")
	if err != nil {
		t.Fatalf("derive service id: %v", err)
	}
	b, err := ServiceID("https://example.com/b")
	if err != nil {
		t.Fatalf("derive service id: %v", err)
	}
	if a == b {
		t.Fatal("expected distinct ids for distinct URLs")
	}
}

func TestKeyIDUniquePerSequence(t *testing.T) {
	svc, err := ServiceID("https://example.com")
	if err != nil {
		t.Fatalf("derive service id: %v", err)
	}
	first, err := KeyID(svc, "acc1recipient", 1)
	if err != nil {
		t.Fatalf("derive key id: %v", err)
	}
	second, err := KeyID(svc, "acc1recipient", 2)
	if err != nil {
		t.Fatalf("derive key id: %v", err)
	}
	if first == second {
		t.Fatal("expected distinct ids for distinct sequences")
	}
	if !IsKey(first) || !IsKey(second) {
		t.Fatalf("expected key prefix, got %q and %q", first, second)
	}
}

func TestAccountIDPrefix(t *testing.T) {
	id, err := AccountID([]byte{0x02, 0x01, 0x02, 0x03})
	if err != nil {
		t.Fatalf("derive account id: %v", err)
	}
	if len(id) <= len(AccountPrefix) {
		t.Fatalf("expected digest after prefix, got %q", id)
	}
	if IsService(id) || IsKey(id) {
		t.Fatalf("account id matched another prefix: %q", id)
	}
}
