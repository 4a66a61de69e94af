package storage

import (
	"context"
	"testing"
)

// ========== 本地存储测试 ==========

func TestLocalStorage_PutGetDelete(t *testing.T) {
	s, err := NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStorage() error = %v", err)
	}
	ctx := context.Background()

	if err := PutBytes(ctx, s, "datasets/demo/train.csv", []byte("a,label\n1,0\n"), "text/csv"); err != nil {
		t.Fatalf("PutBytes() error = %v", err)
	}

	exists, err := s.Exists(ctx, "datasets/demo/train.csv")
	if err != nil || !exists {
		t.Fatalf("Exists() = %v, %v; want true, nil", exists, err)
	}

	data, err := GetBytes(ctx, s, "datasets/demo/train.csv")
	if err != nil {
		t.Fatalf("GetBytes() error = %v", err)
	}
	if string(data) != "a,label\n1,0\n" {
		t.Errorf("GetBytes() = %q", data)
	}

	keys, err := s.List(ctx, "datasets/demo/")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(keys) != 1 || keys[0] != "datasets/demo/train.csv" {
		t.Errorf("List() = %v", keys)
	}

	if err := s.Delete(ctx, "datasets/demo/train.csv"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	exists, _ = s.Exists(ctx, "datasets/demo/train.csv")
	if exists {
		t.Error("object still exists after Delete")
	}
}

func TestLocalStorage_MissingObject(t *testing.T) {
	s, _ := NewLocalStorage(t.TempDir())
	ctx := context.Background()

	if _, err := s.Get(ctx, "no/such/key"); err == nil {
		t.Error("Get(missing) expected error, got nil")
	}
	exists, err := s.Exists(ctx, "no/such/key")
	if err != nil || exists {
		t.Errorf("Exists(missing) = %v, %v; want false, nil", exists, err)
	}
	// 删除不存在的对象不报错
	if err := s.Delete(ctx, "no/such/key"); err != nil {
		t.Errorf("Delete(missing) error = %v", err)
	}
}

func TestLocalStorage_RejectsTraversal(t *testing.T) {
	s, _ := NewLocalStorage(t.TempDir())
	ctx := context.Background()

	if _, err := s.Get(ctx, "../etc/passwd"); err == nil {
		t.Error("Get(traversal key) expected error, got nil")
	}
}
