package repository

import "github.com/vanderheijden86/lazytree/pkg/model"

// DemoRoot returns the unloaded root of the demo hierarchy.
func DemoRoot() model.TreeNode {
	return model.TreeNode{ID: "node-1", Name: "Application", Level: "A"}
}

// DemoData returns the lazily served children of the demo hierarchy.
//
//	Application
//	├── Services
//	│   ├── Auth Service
//	│   │   └── OAuth Provider
//	│   └── API Gateway
//	└── Components
//	    ├── Button
//	    └── Modal
func DemoData() map[string][]model.TreeNode {
	return map[string][]model.TreeNode{
		"node-1": {
			{ID: "node-2", Name: "Services", Level: "B"},
			{ID: "node-6", Name: "Components", Level: "B"},
		},
		"node-2": {
			{ID: "node-3", Name: "Auth Service", Level: "C"},
			{ID: "node-5", Name: "API Gateway", Level: "C"},
		},
		"node-3": {
			{ID: "node-4", Name: "OAuth Provider", Level: "D", IsLoaded: true},
		},
		"node-6": {
			{ID: "node-7", Name: "Button", Level: "C", IsLoaded: true},
			{ID: "node-8", Name: "Modal", Level: "C", IsLoaded: true},
		},
	}
}

// NewDemo returns the demo repository with the given latency.
func NewDemo(latency Latency) *Memory {
	return NewMemory(DemoData(), latency)
}
