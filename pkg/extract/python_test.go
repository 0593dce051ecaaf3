// Copyright 2026 Quarry Labs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//
// SPDX-License-Identifier: Apache-2.0

package extract

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const pySample = `"""Order processing."""
import os

TAX = 0.2


def total(items):
    return sum(items) * (1 + TAX)


class Order:
    def __init__(self, items):
        self.items = items

    @property
    def total(self):
        return total(self.items)
`

func TestPythonExtractor_Extract(t *testing.T) {
	e := NewPythonExtractor()

	units, err := e.Extract("shop/orders.py", []byte(pySample))
	require.NoError(t, err)
	require.Len(t, units, 5)

	mod := units[0]
	assert.Equal(t, KindModule, mod.Kind)
	assert.Equal(t, "orders", mod.Symbol)
	assert.Contains(t, mod.Source, "import os")
	assert.Contains(t, mod.Source, "TAX = 0.2")

	fn := units[1]
	assert.Equal(t, KindFunction, fn.Kind)
	assert.Equal(t, "total", fn.Symbol)

	cls := units[2]
	assert.Equal(t, KindClass, cls.Kind)
	assert.Equal(t, "Order", cls.Symbol)

	init := units[3]
	assert.Equal(t, KindMethod, init.Kind)
	assert.Equal(t, "Order.__init__", init.Symbol)
	assert.Equal(t, "Order", init.Scope)
	assert.Equal(t, 2, init.Parent, "method parent must point at the class unit")

	prop := units[4]
	assert.Equal(t, "Order.total", prop.Symbol)
	assert.Contains(t, prop.Source, "@property", "decorators stay with the method")
}

func TestPythonExtractor_DecoratedFunction(t *testing.T) {
	e := NewPythonExtractor()

	src := []byte("@cached\ndef slow():\n    return 1\n")
	units, err := e.Extract("util.py", src)
	require.NoError(t, err)
	require.Len(t, units, 1)
	assert.Equal(t, "slow", units[0].Symbol)
	assert.Contains(t, units[0].Source, "@cached")
	assert.Equal(t, 0, units[0].StartByte)
}

func TestPythonExtractor_SyntaxError(t *testing.T) {
	e := NewPythonExtractor()

	_, err := e.Extract("bad.py", []byte("def broken(:\n    pass\n"))
	require.Error(t, err)

	var perr *ParseError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, "bad.py", perr.Path)
}

func TestPythonExtractor_ScriptOnlyFile(t *testing.T) {
	e := NewPythonExtractor()

	// No definitions at all: the whole file is the module unit.
	units, err := e.Extract("run.py", []byte("import sys\nprint(sys.argv)\n"))
	require.NoError(t, err)
	require.Len(t, units, 1)
	assert.Equal(t, KindModule, units[0].Kind)
	assert.Equal(t, "run", units[0].Symbol)
}

func TestPythonExtractor_NotUTF8(t *testing.T) {
	e := NewPythonExtractor()

	_, err := e.Extract("bin.py", []byte{0xff, 0xfe, 0x00, 0x01})
	var perr *ParseError
	require.True(t, errors.As(err, &perr))
}
