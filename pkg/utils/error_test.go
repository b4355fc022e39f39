package utils_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/DeBankDeFi/tahani/pkg/utils"
	"github.com/stretchr/testify/require"
)

func TestWrapKeepsEngineMessage(t *testing.T) {
	engineErr := errors.New("IO error: lock /tmp/x/LOCK: already held by process")
	err := utils.Wrap(utils.StoreOpenErrorCode, engineErr)

	require.Equal(t, engineErr.Error(), err.Error())
	require.ErrorIs(t, err, utils.ErrStoreOpen)
	require.ErrorIs(t, err, engineErr)
	require.False(t, errors.Is(err, utils.ErrStoreIO))
}

func TestWrapNil(t *testing.T) {
	require.NoError(t, utils.Wrap(utils.StoreIOErrorCode, nil))
}

func TestErrorToErrorCode(t *testing.T) {
	require.Nil(t, utils.ErrorToErrorCode(nil))

	wrapped := fmt.Errorf("put: %w", utils.ErrStoreClosed)
	require.Equal(t, utils.StoreClosedErrorCode, utils.ErrorToErrorCode(wrapped).Code())

	require.Equal(t, utils.UnknownErrorCode, utils.ErrorToErrorCode(errors.New("boom")).Code())
}
