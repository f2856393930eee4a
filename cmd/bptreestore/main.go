package main

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/gopherlabs/bptreestore/internal/storage/buffer"
	"github.com/gopherlabs/bptreestore/internal/storage/config"
	"github.com/gopherlabs/bptreestore/internal/storage/disk"
	"github.com/gopherlabs/bptreestore/internal/storage/index/bplustree"
	"github.com/gopherlabs/bptreestore/internal/storage/transaction"
	"github.com/gopherlabs/bptreestore/internal/storage/util"
)

func main() {
	cfg := config.DefaultConfig()
	cfg.LeafMaxSize = 4
	cfg.InternalMaxSize = 4
	cfg.PoolSize = 32

	dir, err := os.MkdirTemp("", "bptreestore-demo")
	if err != nil {
		panic(err)
	}
	defer os.RemoveAll(dir)

	log, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	fm, err := disk.NewFileManager(filepath.Join(dir, cfg.DataFile))
	if err != nil {
		panic(err)
	}
	defer fm.Close()

	bpm, err := buffer.NewPoolManager(cfg.PoolSize, fm, buffer.NewLRUReplacer(cfg.PoolSize), log)
	if err != nil {
		panic(err)
	}

	tree := bplustree.New(bplustree.Config{
		IndexName:       "demo",
		LeafMaxSize:     cfg.LeafMaxSize,
		InternalMaxSize: cfg.InternalMaxSize,
	}, bpm, disk.NewMapCatalog(), log)

	txn := transaction.New()
	for i := int64(1); i <= 20; i++ {
		if _, err := tree.Insert(i, util.RID{PageID: int32(i), SlotNum: 0}, txn); err != nil {
			panic(err)
		}
	}

	fmt.Println(tree.ToString())

	if err := tree.Remove(10, txn); err != nil {
		panic(err)
	}

	it, err := tree.Begin()
	if err != nil {
		panic(err)
	}
	defer it.Close()

	fmt.Print("keys: ")
	for !it.IsEnd() {
		fmt.Printf("%d ", it.Key())
		more, err := it.Next()
		if err != nil {
			panic(err)
		}
		if !more {
			break
		}
	}
	fmt.Println()

	if err := bpm.FlushAll(); err != nil {
		panic(err)
	}
}
