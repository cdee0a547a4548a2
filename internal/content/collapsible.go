package content

import (
	"fmt"
	"sync"
)

// DefaultFoldThreshold is the code block height above which a block starts
// collapsed.
const DefaultFoldThreshold = 12

// CollapsibleManager tracks which long code blocks are expanded. Sections
// are keyed by message id and block index.
type CollapsibleManager struct {
	sections  map[string]bool
	expandAll bool
	threshold int
	mutex     sync.RWMutex
}

// NewCollapsibleManager creates a manager with the default threshold.
func NewCollapsibleManager() *CollapsibleManager {
	return &CollapsibleManager{
		sections:  make(map[string]bool),
		threshold: DefaultFoldThreshold,
	}
}

// SectionID names the n-th code block of a message.
func SectionID(messageID string, block int) string {
	return fmt.Sprintf("%s#%d", messageID, block)
}

// Foldable reports whether a block of the given height is subject to folding.
func (cm *CollapsibleManager) Foldable(lines int) bool {
	cm.mutex.RLock()
	defer cm.mutex.RUnlock()
	return cm.threshold > 0 && lines > cm.threshold
}

// IsExpanded reports the state of a section. Unknown sections follow the
// global toggle.
func (cm *CollapsibleManager) IsExpanded(sectionID string) bool {
	cm.mutex.RLock()
	defer cm.mutex.RUnlock()
	if expanded, ok := cm.sections[sectionID]; ok {
		return expanded
	}
	return cm.expandAll
}

// ToggleSection flips one section.
func (cm *CollapsibleManager) ToggleSection(sectionID string) {
	cm.mutex.Lock()
	defer cm.mutex.Unlock()
	current, ok := cm.sections[sectionID]
	if !ok {
		current = cm.expandAll
	}
	cm.sections[sectionID] = !current
}

// ExpandAll expands every section, including ones not yet rendered.
func (cm *CollapsibleManager) ExpandAll() {
	cm.setAll(true)
}

// CollapseAll collapses every section.
func (cm *CollapsibleManager) CollapseAll() {
	cm.setAll(false)
}

// Expanded reports the global toggle.
func (cm *CollapsibleManager) Expanded() bool {
	cm.mutex.RLock()
	defer cm.mutex.RUnlock()
	return cm.expandAll
}

func (cm *CollapsibleManager) setAll(expanded bool) {
	cm.mutex.Lock()
	defer cm.mutex.Unlock()
	cm.expandAll = expanded
	cm.sections = make(map[string]bool)
}
