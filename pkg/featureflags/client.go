package featureflags

// Client looks up feature flags.
type Client interface {
	Boolean(flagName string, defaultValue bool, featureCtx map[string]any) bool
}

type defaultClient struct {
	flags map[string]any
}

// NewDefaultClient returns a Client in which exactly the given flags are on.
func NewDefaultClient(flags []string) Client {
	enabledFlags := make(map[string]any)
	for _, flag := range flags {
		enabledFlags[flag] = struct{}{}
	}
	return &defaultClient{
		flags: enabledFlags,
	}
}

func (c *defaultClient) Boolean(flagName string, defaultValue bool, featureCtx map[string]any) bool {
	_, ok := c.flags[flagName]
	return ok || defaultValue
}

type hardcodedBooleanClient struct {
	result bool // this client will always return this result
}

// NewHardcodedBooleanClient creates a hardcodedBooleanClient which always returns the value of `response` it's given.
// The hardcodedBooleanClient is used in testing and to force every experiment on or off.
func NewHardcodedBooleanClient(result bool) Client {
	return &hardcodedBooleanClient{result: result}
}

func (h *hardcodedBooleanClient) Boolean(flagName string, defaultValue bool, featureCtx map[string]any) bool {
	return h.result
}
