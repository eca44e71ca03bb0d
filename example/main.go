package main

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/limpo1989/dynarray"
)

func main() {
	logger, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	arr, err := dynarray.New[int](dynarray.WithLogger(logger))
	if err != nil {
		logger.Fatal("create array", zap.Error(err))
	}
	for _, v := range []int{5, 6, 7} {
		if err = arr.Append(v); err != nil {
			logger.Fatal("append", zap.Int("value", v), zap.Error(err))
		}
	}
	fmt.Println("append:", arr, arr.Len())

	first, err := arr.PopAt(0)
	if err != nil {
		logger.Fatal("pop", zap.Int("index", 0), zap.Error(err))
	}
	fmt.Println("pop(0):", first, arr, arr.Len())

	if err = arr.Insert(0, 99); err != nil {
		logger.Fatal("insert", zap.Int("index", 0), zap.Error(err))
	}
	fmt.Println("insert(99, 0):", arr, arr.Len())

	if err = arr.Extend(dynarray.Slice[int]{8, 9}); err != nil {
		logger.Fatal("extend", zap.Error(err))
	}
	fmt.Println("extend([8, 9]):", arr, arr.Len())

	// Arena-backed, mixed-content and growth-policy variants
	ar := dynarray.NewArena()
	defer ar.Reset()

	floats, err := dynarray.FromSlice([]float64{1.5, 2.5}, dynarray.WithArena(ar), dynarray.WithLogger(logger))
	if err != nil {
		logger.Fatal("create arena array", zap.Error(err))
	}
	if err = floats.Append(3.5); err != nil {
		logger.Fatal("append", zap.Float64("value", 3.5), zap.Error(err))
	}
	fmt.Println("arena:", floats, "live blocks:", ar.Live())

	mixed, err := dynarray.Of[any]([]any{"a", 1}, false)
	if err != nil {
		logger.Fatal("create mixed array", zap.Error(err))
	}
	if err = mixed.AppendValue([]any{2.0, 'x'}, true); err != nil {
		logger.Fatal("append unpacked", zap.Error(err))
	}
	fmt.Println("mixed:", mixed, mixed.Len())

	doubling, err := dynarray.New[int](dynarray.WithGrowth(dynarray.GrowDoubling))
	if err != nil {
		logger.Fatal("create doubling array", zap.Error(err))
	}
	for i := 0; i < 5; i++ {
		if err = doubling.Append(i); err != nil {
			logger.Fatal("append", zap.Int("value", i), zap.Error(err))
		}
	}
	fmt.Println(dynarray.GrowDoubling, doubling, "cap:", doubling.Cap())

	if _, err = arr.Get(arr.Len()); err != nil {
		logger.Info("out of range read rejected", zap.Error(err))
	}
}
