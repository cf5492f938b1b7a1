package testutil

import (
	"strings"
	"testing"

	"github.com/imr/Electric8/internal/tech"
	"github.com/imr/Electric8/internal/techxml"
)

// MiniXML is a small but complete technology document.
const MiniXML = `<?xml version="1.0" encoding="UTF-8"?>
<technology name="mini"
     xmlns="http://electric.sun.com/Technology"
     xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance"
     xsi:schemaLocation="http://electric.sun.com/Technology ../../technology/xml/TechnologyParam.xsd">
    <shortName>Mini</shortName>
    <description>Minimal two-metal process</description>
    <numMetals min="1" max="2" default="2"/>
    <scale value="100.0" relevant="true"/>
    <defaultFoundry value="NONE"/>
    <minResistance value="1.0"/>
    <minCapacitance value="0.1"/>

    <layer name="Metal-1" fun="METAL1">
        <cifLayer cif="CMF"/>
        <pureLayerNode name="Metal-1-Node" port="metal-1">
            <portArc>Metal-1</portArc>
        </pureLayerNode>
    </layer>
    <layer name="Metal-2" fun="METAL2"/>
    <layer name="Via1" fun="CONTACT2" extraFun="connects-metal"/>

    <arcProto name="Metal-1" fun="METAL1">
        <extended>true</extended>
        <fixedAngle>true</fixedAngle>
        <angleIncrement>90</angleIncrement>
        <arcLayer layer="Metal-1" style="FILLED">
            <rule ruleName="M1.W"/>
        </arcLayer>
        <arcPin name="Metal-1-Pin" port="metal-1" elibSize="0.0">
            <portArc>Metal-1</portArc>
        </arcPin>
    </arcProto>

    <primitiveNode name="Metal-1-Pad" fun="CONNECT">
        <defaultWidth>
            <rule ruleName="M1.W"/>
            <lambda>2.0</lambda>
        </defaultWidth>
        <nodeLayer layer="Metal-1" style="FILLED">
            <box/>
        </nodeLayer>
    </primitiveNode>
    <primitiveNode name="Metal-1-Metal-2-Con" fun="CONTACT">
        <defaultWidth>
            <lambda>4.0</lambda>
        </defaultWidth>
        <defaultHeight>
            <lambda>4.0</lambda>
        </defaultHeight>
        <nodeLayer layer="Metal-1" style="FILLED">
            <box/>
        </nodeLayer>
        <nodeLayer layer="Metal-2" style="FILLED">
            <box/>
        </nodeLayer>
        <nodeLayer layer="Via1" style="CLOSED">
            <multicutbox sizeRule="V1.S" sepRule="V1.SP">
                <lambdaBox klx="1.0" khx="-1.0" kly="1.0" khy="-1.0"/>
            </multicutbox>
        </nodeLayer>
        <primitivePort name="m1m2">
            <portAngle primary="0" range="180"/>
            <portTopology>0</portTopology>
            <box/>
            <portArc>Metal-1</portArc>
        </primitivePort>
    </primitiveNode>

    <menuPalette numColumns="1">
        <menuBox>
            <menuArc>Metal-1</menuArc>
        </menuBox>
        <menuBox>
            <menuNode>Metal-1-Metal-2-Con</menuNode>
        </menuBox>
    </menuPalette>

    <ruleSet name="sizes">
        <layerRule ruleName="width">
            <layer name="Metal-1"><rule ruleName="M1.W"/></layer>
            <layer name="Metal-2"><lambda>3.0</lambda></layer>
        </layerRule>
    </ruleSet>
</technology>
`

// MiniRulesYAML is a rule table covering every rule MiniXML references.
const MiniRulesYAML = `name: mini-rules
rules:
  M1.W: 3.0
  V1.S: 2.0
  V1.SP: 3.0
`

// Technology decodes MiniXML, failing the test on error.
func Technology(t *testing.T) *tech.Technology {
	t.Helper()
	tc, err := techxml.Decode(strings.NewReader(MiniXML), "mini.xml")
	if err != nil {
		t.Fatalf("decoding mini technology: %v", err)
	}
	return tc
}
