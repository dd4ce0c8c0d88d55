package publisher

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/openfga/scientist/internal/mocks"
	"github.com/openfga/scientist/pkg/experiment"
)

func TestMulti(t *testing.T) {
	ctrl := gomock.NewController(t)
	failing := mocks.NewMockPublisher[int, int](ctrl)
	failing.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(errBoom)

	panicking := experiment.PublisherFunc[int, int](func(context.Context, *experiment.Result[int, int]) error {
		panic("sink")
	})
	sink := NewInMemory[int, int]()

	p := NewMulti[int, int](failing, panicking, sink)
	err := p.Publish(context.Background(), newResult(t, "multi", 1, "match"))

	require.ErrorIs(t, err, errBoom)
	var panicErr *experiment.PanicError
	require.ErrorAs(t, err, &panicErr)
	require.Equal(t, 1, sink.Len())

	t.Run("no_publishers", func(t *testing.T) {
		require.NoError(t, NewMulti[int, int]().Publish(context.Background(), newResult(t, "multi", 1, "match")))
	})
}
