package engine

import (
	"github.com/kittclouds/scrollforge/internal/frame"
	"github.com/kittclouds/scrollforge/pkg/class"
)

func useCollected(rt class.Runtime, parentUID, className string, hierarchy map[string][]string) (string, bool, error) {
	return frame.UseCollected(rt.Tx(), parentUID, className, hierarchy, rt.Randomizer())
}

func recycleCollected(rt class.Runtime, parentUID, className, uid string, hierarchy map[string][]string) error {
	return frame.Recycle(rt.Tx(), parentUID, className, uid, hierarchy)
}

func pickCollected(rt class.Runtime, parentUID, className string, hierarchy map[string][]string) (string, bool, error) {
	return frame.PickCollected(rt.Tx(), parentUID, className, hierarchy, rt.Randomizer())
}
